package handler

import (
	"time"

	rewardsModel "github.com/Ghostmonday/Goldleaves-sub001/internal/rewards/models"
)

type statsResponse struct {
	ContributorID      string     `json:"contributor_id"`
	FormsSubmitted     int        `json:"forms_submitted"`
	FormsApproved      int        `json:"forms_approved"`
	FormsRejected      int        `json:"forms_rejected"`
	FormsPending       int        `json:"forms_pending"`
	RevisionsRequested int        `json:"revisions_requested"`
	UniquePages        int        `json:"unique_pages"`
	UniqueForms        int        `json:"unique_forms"`
	FreeWeeksEarned    int        `json:"free_weeks_earned"`
	FreeWeeksUsed      int        `json:"free_weeks_used"`
	CurrentStreak      int        `json:"current_streak"`
	BestStreak         int        `json:"best_streak"`
	Tier               string     `json:"tier"`
	AverageScore       float64    `json:"average_score"`
	LastContributionAt *time.Time `json:"last_contribution_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type entryResponse struct {
	ID             string     `json:"id"`
	FormID         string     `json:"form_id,omitempty"`
	RewardType     string     `json:"reward_type"`
	AmountWeeks    int        `json:"amount_weeks"`
	Reason         string     `json:"reason"`
	MilestoneType  string     `json:"milestone_type,omitempty"`
	MilestoneValue int        `json:"milestone_value,omitempty"`
	Status         string     `json:"status"`
	GrantedAt      time.Time  `json:"granted_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	UsedAt         *time.Time `json:"used_at,omitempty"`
}

type rewardsResponse struct {
	Stats           statsResponse   `json:"stats"`
	ActiveEntries   []entryResponse `json:"active_entries"`
	ActiveWeeks     int             `json:"active_weeks"`
	NextMilestoneAt int             `json:"next_milestone_at"`
	PagesToGo       int             `json:"pages_to_go"`
}

type redemptionResponse struct {
	WeeksRedeemed   int            `json:"weeks_redeemed"`
	ConsumedEntries []string       `json:"consumed_entries"`
	RemainderEntry  *entryResponse `json:"remainder_entry,omitempty"`
	ActiveWeeksLeft int            `json:"active_weeks_left"`
}

func toStatsResponse(st *rewardsModel.ContributorStats) statsResponse {
	return statsResponse{
		ContributorID:      st.ContributorID.String(),
		FormsSubmitted:     st.FormsSubmitted,
		FormsApproved:      st.FormsApproved,
		FormsRejected:      st.FormsRejected,
		FormsPending:       st.FormsPending,
		RevisionsRequested: st.RevisionsRequested,
		UniquePages:        st.UniquePages,
		UniqueForms:        st.UniqueForms,
		FreeWeeksEarned:    st.FreeWeeksEarned,
		FreeWeeksUsed:      st.FreeWeeksUsed,
		CurrentStreak:      st.CurrentStreak,
		BestStreak:         st.BestStreak,
		Tier:               st.Tier.String(),
		AverageScore:       st.AverageScore(),
		LastContributionAt: st.LastContributionAt,
		CreatedAt:          st.CreatedAt,
		UpdatedAt:          st.UpdatedAt,
	}
}

func toEntryResponse(e *rewardsModel.RewardLedgerEntry) entryResponse {
	resp := entryResponse{
		ID:             e.ID.String(),
		RewardType:     e.RewardType.String(),
		AmountWeeks:    e.AmountWeeks,
		Reason:         e.Reason,
		MilestoneType:  e.MilestoneType,
		MilestoneValue: e.MilestoneValue,
		Status:         e.Status.String(),
		GrantedAt:      e.GrantedAt,
		ExpiresAt:      e.ExpiresAt,
		UsedAt:         e.UsedAt,
	}
	if e.FormID != nil {
		resp.FormID = e.FormID.String()
	}
	return resp
}

func toRewardsResponse(s *rewardsModel.RewardsSnapshot) rewardsResponse {
	entries := make([]entryResponse, 0, len(s.ActiveEntries))
	for _, e := range s.ActiveEntries {
		entries = append(entries, toEntryResponse(e))
	}
	return rewardsResponse{
		Stats:           toStatsResponse(s.Stats),
		ActiveEntries:   entries,
		ActiveWeeks:     s.ActiveWeeks,
		NextMilestoneAt: s.NextMilestoneAt,
		PagesToGo:       s.PagesToGo,
	}
}

func toRedemptionResponse(r *rewardsModel.Redemption) redemptionResponse {
	consumed := make([]string, 0, len(r.ConsumedEntries))
	for _, entryID := range r.ConsumedEntries {
		consumed = append(consumed, entryID.String())
	}
	resp := redemptionResponse{
		WeeksRedeemed:   r.WeeksRedeemed,
		ConsumedEntries: consumed,
		ActiveWeeksLeft: r.ActiveWeeksLeft,
	}
	if r.RemainderEntry != nil {
		remainder := toEntryResponse(r.RemainderEntry)
		resp.RemainderEntry = &remainder
	}
	return resp
}
