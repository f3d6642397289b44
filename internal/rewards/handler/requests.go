package handler

import (
	dErrors "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain-errors"
)

type redeemRequest struct {
	Weeks int `json:"weeks"`
}

func (r *redeemRequest) Validate() error {
	if r.Weeks <= 0 {
		return dErrors.New(dErrors.CodeValidation, "weeks must be a positive integer")
	}
	return nil
}
