package domain

// Status is the conversation status reported to the caller.
type Status string

const (
	// StatusContinue means the agent keeps the counterpart engaged.
	StatusContinue Status = "CONTINUE"
	// StatusFinished means the session reached its terminal state.
	StatusFinished Status = "FINISHED"
)

// Intelligence is the wire snapshot of accumulated artifacts, each list
// ordered by first-seen turn with unique values.
type Intelligence struct {
	UPIIDs             []string `json:"upiIds"`
	BankAccounts       []string `json:"bankAccounts"`
	PhishingLinks      []string `json:"phishingLinks"`
	PhoneNumbers       []string `json:"phoneNumbers"`
	SuspiciousKeywords []string `json:"suspiciousKeywords"`
}

// IntelligenceFrom snapshots an ArtifactSet into wire form.
func IntelligenceFrom(set ArtifactSet) Intelligence {
	return Intelligence{
		UPIIDs:             set.Values(CategoryUPI),
		BankAccounts:       set.Values(CategoryBank),
		PhishingLinks:      set.Values(CategoryLink),
		PhoneNumbers:       set.Values(CategoryPhone),
		SuspiciousKeywords: set.Values(CategoryKeyword),
	}
}

// Metrics summarizes engagement effort for a session.
type Metrics struct {
	EngagementDurationSeconds int64 `json:"engagementDurationSeconds"`
	TotalMessagesExchanged    int   `json:"totalMessagesExchanged"`
}

// Decision is the structured result of processing one inbound message.
// Status FINISHED is always derived from artifact sets and turn/time
// ceilings, never from the generation capability's suggestion alone.
type Decision struct {
	ScamDetected bool         `json:"scamDetected"`
	Status       Status       `json:"conversationStatus"`
	ReplyText    string       `json:"replyText"`
	Intelligence Intelligence `json:"extractedIntelligence"`
	AgentNotes   string       `json:"agentNotes"`
	Metrics      Metrics      `json:"engagementMetrics"`
}
