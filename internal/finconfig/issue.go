package finconfig

import (
	"fmt"
	"strings"
)

// Code classifies why a field was rejected.
type Code string

const (
	// CodeMissingRequired: a field mandatory under the current settings is absent.
	CodeMissingRequired Code = "missing_required"
	// CodeInvalidValue: the field is present but fails its type or range.
	CodeInvalidValue Code = "invalid_value"
	// CodeMutuallyExclusive: the field is populated but the selected mode requires it empty.
	CodeMutuallyExclusive Code = "mutually_exclusive"
	// CodeModeIncomplete: a mode is selected but its dependent fields are not all supplied.
	CodeModeIncomplete Code = "mode_incomplete"
)

// Group names a rule group. Issues from one group are displayed together.
type Group string

const (
	GroupCharges          Group = "charges"
	GroupTax              Group = "tax"
	GroupWaterMeter       Group = "water_meter"
	GroupElectricityMeter Group = "electricity_meter"
	GroupArrears          Group = "arrears"
	GroupFinePolicy       Group = "fine_policy"
	GroupBilling          Group = "billing"
)

// Issue is a single field-scoped validation failure.
type Issue struct {
	Field   string `json:"field"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Group   Group  `json:"group"`
}

func (i Issue) String() string {
	return i.Field + ": " + i.Message
}

// Issues is an ordered list of issues holding at most one issue per field.
type Issues []Issue

// add appends an issue unless the field already has one.
func (is *Issues) add(group Group, field string, code Code, msg string) {
	if is.Has(field) {
		return
	}
	*is = append(*is, Issue{Field: field, Code: code, Message: msg, Group: group})
}

func (is *Issues) merge(other Issues) {
	for _, i := range other {
		is.add(i.Group, i.Field, i.Code, i.Message)
	}
}

// Has reports whether field has an issue.
func (is Issues) Has(field string) bool {
	_, ok := is.Get(field)
	return ok
}

// Get returns the issue recorded for field.
func (is Issues) Get(field string) (Issue, bool) {
	for _, i := range is {
		if i.Field == field {
			return i, true
		}
	}
	return Issue{}, false
}

// Fields returns the offending field names in order.
func (is Issues) Fields() []string {
	out := make([]string, len(is))
	for n, i := range is {
		out[n] = i.Field
	}
	return out
}

// Groups returns the distinct groups in order of first appearance.
func (is Issues) Groups() []Group {
	var out []Group
	seen := make(map[Group]bool)
	for _, i := range is {
		if !seen[i.Group] {
			seen[i.Group] = true
			out = append(out, i.Group)
		}
	}
	return out
}

// ByGroup partitions issues by group, preserving order within each group.
func (is Issues) ByGroup() map[Group]Issues {
	out := make(map[Group]Issues)
	for _, i := range is {
		out[i.Group] = append(out[i.Group], i)
	}
	return out
}

// Err returns nil when there are no issues, otherwise an error listing them.
func (is Issues) Err() error {
	if len(is) == 0 {
		return nil
	}
	return &IssuesError{Issues: is}
}

// IssuesError wraps a non-empty issue list as an error.
type IssuesError struct {
	Issues Issues
}

func (e *IssuesError) Error() string {
	parts := make([]string, len(e.Issues))
	for n, i := range e.Issues {
		parts[n] = i.String()
	}
	return fmt.Sprintf("%d validation issue(s): %s", len(e.Issues), strings.Join(parts, "; "))
}
