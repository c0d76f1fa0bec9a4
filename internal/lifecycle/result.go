package lifecycle

import "github.com/google/uuid"

// Outcome tags the result of one item in a bulk operation.
type Outcome string

const (
	OutcomeSuccessful          Outcome = "successful"
	OutcomeCrossGroupDuplicate Outcome = "cross_group_duplicate"
	OutcomeAlreadyInvited      Outcome = "already_invited"
	OutcomeQuotaExceeded       Outcome = "quota_exceeded"
	OutcomeFailed              Outcome = "failed"
)

// ItemResult is the outcome for one id of a bulk call. Warning is set when the
// action was applied but a soft precondition was not met.
type ItemResult struct {
	ID            uuid.UUID  `json:"id"`
	Outcome       Outcome    `json:"outcome"`
	Reason        string     `json:"reason,omitempty"`
	Warning       string     `json:"warning,omitempty"`
	AssociationID *uuid.UUID `json:"association_id,omitempty"`
	Code          string     `json:"code,omitempty"`
}

// BatchResult holds one ItemResult per requested id, in request order.
type BatchResult struct {
	Items []ItemResult `json:"items"`
}

func (b *BatchResult) add(item ItemResult) {
	b.Items = append(b.Items, item)
}

func (b *BatchResult) fail(id uuid.UUID, reason string) {
	b.add(ItemResult{ID: id, Outcome: OutcomeFailed, Reason: reason})
}

func (b *BatchResult) ok(id uuid.UUID, warning string) {
	b.add(ItemResult{ID: id, Outcome: OutcomeSuccessful, Warning: warning, AssociationID: &id})
}

// Count returns how many items ended with o.
func (b *BatchResult) Count(o Outcome) int {
	n := 0
	for _, it := range b.Items {
		if it.Outcome == o {
			n++
		}
	}
	return n
}

// Failures returns the number of items that did not succeed.
func (b *BatchResult) Failures() int {
	return len(b.Items) - b.Count(OutcomeSuccessful)
}

// Warnings returns the warnings of applied items.
func (b *BatchResult) Warnings() []string {
	out := []string{}
	for _, it := range b.Items {
		if it.Warning != "" {
			out = append(out, it.Warning)
		}
	}
	return out
}

// Errors returns the reasons of items that did not succeed.
func (b *BatchResult) Errors() []string {
	out := []string{}
	for _, it := range b.Items {
		if it.Outcome != OutcomeSuccessful && it.Reason != "" {
			out = append(out, it.Reason)
		}
	}
	return out
}

// SubmissionBuckets is the grouped view of a submission result.
type SubmissionBuckets struct {
	Successful           []ItemResult `json:"successful"`
	CrossGroupDuplicates []ItemResult `json:"cross_group_duplicates"`
	AlreadyInvited       []ItemResult `json:"already_invited"`
	QuotaExceeded        []ItemResult `json:"quota_exceeded"`
	Failed               []ItemResult `json:"failed"`
}

// Buckets groups items by outcome.
func (b *BatchResult) Buckets() SubmissionBuckets {
	out := SubmissionBuckets{
		Successful:           []ItemResult{},
		CrossGroupDuplicates: []ItemResult{},
		AlreadyInvited:       []ItemResult{},
		QuotaExceeded:        []ItemResult{},
		Failed:               []ItemResult{},
	}
	for _, it := range b.Items {
		switch it.Outcome {
		case OutcomeSuccessful:
			out.Successful = append(out.Successful, it)
		case OutcomeCrossGroupDuplicate:
			out.CrossGroupDuplicates = append(out.CrossGroupDuplicates, it)
		case OutcomeAlreadyInvited:
			out.AlreadyInvited = append(out.AlreadyInvited, it)
		case OutcomeQuotaExceeded:
			out.QuotaExceeded = append(out.QuotaExceeded, it)
		default:
			out.Failed = append(out.Failed, it)
		}
	}
	return out
}
