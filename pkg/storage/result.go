package storage

import "errors"

// MutationResult is returned by single-item mutations. Failures never escape
// as errors past the service boundary; they are reported here.
type MutationResult struct {
	Item      *StorageItem `json:"item,omitempty"`
	Message   string       `json:"message"`
	Success   bool         `json:"success"`
	ErrorKind ErrorKind    `json:"errorKind,omitempty"`
}

// Succeeded builds a successful result.
func Succeeded(item *StorageItem, message string) *MutationResult {
	return &MutationResult{Item: item, Message: message, Success: true}
}

// Failed builds a failed result from err.
func Failed(err error) *MutationResult {
	se := AsError("", err)
	return &MutationResult{Message: se.Message, Success: false, ErrorKind: se.Kind}
}

// Warning accompanies a mutation that happened but whose follow-up step
// failed, such as removing item metadata. It is returned together with the
// item and does not make the mutation a failure.
type Warning struct {
	Path    string
	Message string
	Err     error
}

func (w *Warning) Error() string {
	if w.Err != nil {
		return w.Path + ": " + w.Message + ": " + w.Err.Error()
	}
	return w.Path + ": " + w.Message
}

func (w *Warning) Unwrap() error { return w.Err }

// SplitWarning separates a *Warning from err. rest is err when it is not a
// warning.
func SplitWarning(err error) (warning *Warning, rest error) {
	if errors.As(err, &warning) {
		return warning, nil
	}
	return nil, err
}

// BulkError describes one failed item of a batch.
type BulkError struct {
	Path    string    `json:"path"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// BulkOperationResult accounts for every item of a batch.
// SuccessCount+FailureCount always equals the number of requested items, and
// Errors and SuccessfulItems follow input order.
type BulkOperationResult struct {
	SuccessCount    int           `json:"successCount"`
	FailureCount    int           `json:"failureCount"`
	Errors          []BulkError   `json:"errors"`
	SuccessfulItems []StorageItem `json:"successfulItems"`

	// Warnings lists succeeded items whose follow-up step failed.
	Warnings []BulkError `json:"warnings,omitempty"`
}

// Total returns the number of items accounted for.
func (r *BulkOperationResult) Total() int {
	return r.SuccessCount + r.FailureCount
}

// ItemOutcome is the result of one batch item. Exactly one of Item and Err is
// set; Warning may accompany Item.
type ItemOutcome struct {
	Path    string
	Item    *StorageItem
	Err     error
	Warning *Warning
}

// Aggregate folds per-item outcomes, in order, into a BulkOperationResult.
func Aggregate(outcomes []ItemOutcome) *BulkOperationResult {
	res := &BulkOperationResult{
		Errors:          []BulkError{},
		SuccessfulItems: []StorageItem{},
	}
	for _, o := range outcomes {
		if o.Err != nil || o.Item == nil {
			se := AsError(o.Path, o.Err)
			if se == nil {
				se = NewBackendError(o.Path, nil)
			}
			res.FailureCount++
			res.Errors = append(res.Errors, BulkError{Path: o.Path, Kind: se.Kind, Message: se.Message})
			continue
		}
		res.SuccessCount++
		res.SuccessfulItems = append(res.SuccessfulItems, o.Item.Identity())
		if o.Warning != nil {
			res.Warnings = append(res.Warnings, BulkError{Path: o.Path, Kind: KindBackendUnavailable, Message: o.Warning.Message})
		}
	}
	return res
}
