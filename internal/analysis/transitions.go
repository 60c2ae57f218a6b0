package analysis

var transitions = map[Status][]Status{
	StatusUploaded:           {StatusTranscribing},
	StatusTranscribing:       {StatusAnalyzingProsody, StatusError},
	StatusAnalyzingProsody:   {StatusGeneratingFeedback, StatusError},
	StatusGeneratingFeedback: {StatusCompleted, StatusError},
}

var processingStatuses = map[Status]struct{}{
	StatusTranscribing:       {},
	StatusAnalyzingProsody:   {},
	StatusGeneratingFeedback: {},
}

// CanTransition reports whether from -> to is an edge of the status graph.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions leave the status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// IsProcessing reports whether a stage is running for the status.
func (s Status) IsProcessing() bool {
	_, ok := processingStatuses[s]
	return ok
}

// ProcessingStatuses lists the statuses a live driver (or a stalled one) holds.
func ProcessingStatuses() []Status {
	return []Status{StatusTranscribing, StatusAnalyzingProsody, StatusGeneratingFeedback}
}

// resultColumn names the result column written on a successful edge, or "" when
// the edge carries no result.
func resultColumn(from, to Status) string {
	switch {
	case from == StatusTranscribing && to == StatusAnalyzingProsody:
		return "transcription_json"
	case from == StatusAnalyzingProsody && to == StatusGeneratingFeedback:
		return "prosody_json"
	case from == StatusGeneratingFeedback && to == StatusCompleted:
		return "feedback_json"
	default:
		return ""
	}
}

// validate checks a mutation against the graph and the result/error invariants
// and returns the column and payload to write.
func (m Mutation) validate() (string, Document, error) {
	if !CanTransition(m.From, m.To) {
		return "", nil, &TransitionError{From: m.From, To: m.To, Reason: "not an edge of the status graph"}
	}
	if m.To == StatusError {
		if m.ErrorMessage == "" {
			return "", nil, &TransitionError{From: m.From, To: m.To, Reason: "error status requires an error message"}
		}
	} else if m.ErrorMessage != "" {
		return "", nil, &TransitionError{From: m.From, To: m.To, Reason: "error message is only allowed with error status"}
	}

	column := resultColumn(m.From, m.To)
	results := map[string]Document{
		"transcription_json": m.Transcription,
		"prosody_json":       m.Prosody,
		"feedback_json":      m.Feedback,
	}
	for name, doc := range results {
		if name == column {
			if len(doc) == 0 {
				return "", nil, &TransitionError{From: m.From, To: m.To, Reason: "missing stage result"}
			}
			continue
		}
		if len(doc) != 0 {
			return "", nil, &TransitionError{From: m.From, To: m.To, Reason: "unexpected result for " + name}
		}
	}
	return column, results[column], nil
}
