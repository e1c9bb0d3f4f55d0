package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashureev/cityline/internal/domain"
)

// Issue report steps.
const (
	IssueChooseType  domain.Step = "report_issue/choose_type"
	IssueAskLocation domain.Step = "report_issue/ask_location"
)

// IssueTypes are the reportable categories.
var IssueTypes = []string{
	"Pothole",
	"Streetlight not working",
	"Traffic signal issue",
	"Water leak",
	"Noise complaint",
	"Other",
}

// issueKeywords maps words in free text to an IssueTypes entry.
var issueKeywords = []struct {
	word      string
	issueType string
}{
	{"pothole", "Pothole"},
	{"potholes", "Pothole"},
	{"streetlight", "Streetlight not working"},
	{"streetlights", "Streetlight not working"},
	{"signal", "Traffic signal issue"},
	{"leak", "Water leak"},
	{"leaking", "Water leak"},
	{"noise", "Noise complaint"},
	{"noisy", "Noise complaint"},
}

// IssueReport records a service request. It has no rejection path.
type IssueReport struct {
	deps Deps
}

var _ Flow = (*IssueReport)(nil)

// NewIssueReport creates the issue report flow.
func NewIssueReport(deps Deps) *IssueReport {
	return &IssueReport{deps: deps.withDefaults()}
}

// Intent implements Flow.
func (f *IssueReport) Intent() domain.Intent { return domain.IntentReportIssue }

// Start implements Flow. An issue type named in the opening message is
// captured immediately.
func (f *IssueReport) Start(_ context.Context, t Turn) Result {
	if it := matchIssueType(t.Input); it != "" {
		t.Slots[domain.SlotIssueType] = it
		return advance(t, IssueAskLocation, locationPrompt(it))
	}
	return advance(t, IssueChooseType,
		"Thank you for helping keep our city in great shape. What type of issue would you like to report?",
		IssueTypes...)
}

// Advance implements Flow.
func (f *IssueReport) Advance(ctx context.Context, t Turn) Result {
	switch t.Step {
	case IssueChooseType:
		it := matchIssueType(t.Input)
		if it == "" {
			it = strings.TrimSpace(t.Input)
		}
		t.Slots[domain.SlotIssueType] = it
		return advance(t, IssueAskLocation, locationPrompt(it))
	case IssueAskLocation:
		return f.log(t)
	default:
		return f.Start(ctx, t)
	}
}

func (f *IssueReport) log(t Turn) Result {
	location := strings.TrimSpace(t.Input)
	id := f.deps.IDs.Timestamped(PrefixServiceRequest, t.Now)
	t.Slots[domain.SlotIssueLocation] = location

	f.deps.Logger.Info("Service request logged",
		"request_id", id, "issue_type", t.Slots[domain.SlotIssueType], "location", location)

	return finish(t, OutcomeCompleted,
		fmt.Sprintf("Issue reported!\n\nService request: #%s\nIssue: %s\nLocation: %s\n\n"+
			"Our maintenance team has been notified. Expected response time is 2-3 business days and you'll get email "+
			"updates as it progresses. For urgent safety issues, call (555) 911-CITY.\n\nAnything else I can do for you?",
			id, t.Slots[domain.SlotIssueType], location),
		MenuOptions...)
}

func locationPrompt(issueType string) string {
	return fmt.Sprintf("Thanks for reporting a %s. To help our team respond quickly, where exactly is it? "+
		"For example '123 Main Street' or 'corner of Oak and Pine'.", strings.ToLower(issueType))
}

func matchIssueType(text string) string {
	ws := words(text)
	for _, kw := range issueKeywords {
		if ws[kw.word] {
			return kw.issueType
		}
	}
	return ""
}
