package queue

import (
	"fmt"
	"strings"
)

// DispatchJob is the broker payload for one dispatch pass. An empty
// RecordIDs list means the whole campaign's PENDING set; a retry scopes the
// pass to exactly the record IDs it requeued.
type DispatchJob struct {
	CampaignID    string   `json:"campaignId"`
	RecordIDs     []string `json:"recordIds,omitempty"`
	CorrelationID string   `json:"correlationId,omitempty"`
}

func (j DispatchJob) Validate() error {
	if strings.TrimSpace(j.CampaignID) == "" {
		return fmt.Errorf("campaignId is required")
	}
	for _, id := range j.RecordIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("recordIds must not contain empty ids")
		}
	}
	return nil
}
