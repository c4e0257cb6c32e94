package domain

import "time"

// SequenceOutcome is the terminal classification of a sequence.
type SequenceOutcome string

const (
	SequenceWin     SequenceOutcome = "WIN"
	SequenceDoji    SequenceOutcome = "DOJI"
	SequenceLoss    SequenceOutcome = "LOSS"
	SequenceAborted SequenceOutcome = "ABORTED"
)

// Scenario codes used in reports.
const (
	ScenarioAborted      = -1
	ScenarioDoji         = 0
	ScenarioDirectWin    = 1
	ScenarioRecoveredWin = 2
	ScenarioFullLoss     = 3
)

// Sequence is one full staking attempt from the initial stake to a terminal outcome.
type Sequence struct {
	ID           string          `json:"id"`
	SessionID    string          `json:"session_id"`
	Signal       Signal          `json:"signal"`
	Levels       []Level         `json:"levels"`
	CurrentLevel int             `json:"current_level"`
	Outcome      SequenceOutcome `json:"outcome"`
	Scenario     int             `json:"scenario"`
	AbortReason  string          `json:"abort_reason,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	EndedAt      time.Time       `json:"ended_at"`
}

// Profit is the sum of level results rounded to cents.
func (s *Sequence) Profit() float64 {
	var total float64
	for _, l := range s.Levels {
		total += l.Profit
	}
	return RoundMoney(total)
}

// AccumulatedLoss returns the stake lost over all levels so far.
func (s *Sequence) AccumulatedLoss() float64 {
	var lost float64
	for _, l := range s.Levels {
		if l.IsLoss() {
			lost -= l.Profit
		}
	}
	return RoundMoney(lost)
}

// Terminate classifies the sequence from its levels and stamps the end time.
// levels is the configured level count.
func (s *Sequence) Terminate(levels int, at time.Time) {
	s.EndedAt = at
	if s.Outcome == SequenceAborted {
		s.Scenario = ScenarioAborted
		return
	}
	if len(s.Levels) == 0 {
		s.Outcome = SequenceAborted
		s.Scenario = ScenarioAborted
		return
	}
	last := s.Levels[len(s.Levels)-1]
	switch {
	case last.Outcome == OutcomeWin && last.Index == 0:
		s.Outcome, s.Scenario = SequenceWin, ScenarioDirectWin
	case last.Outcome == OutcomeWin:
		s.Outcome, s.Scenario = SequenceWin, ScenarioRecoveredWin
	case last.Outcome == OutcomeDoji:
		s.Outcome, s.Scenario = SequenceDoji, ScenarioDoji
	case last.IsLoss() && len(s.Levels) >= levels:
		s.Outcome, s.Scenario = SequenceLoss, ScenarioFullLoss
	default:
		s.Outcome, s.Scenario = SequenceAborted, ScenarioAborted
	}
}

// Abort marks the sequence as ended without reaching a natural terminal.
func (s *Sequence) Abort(reason string, at time.Time) {
	s.Outcome = SequenceAborted
	s.AbortReason = reason
	s.Terminate(0, at)
}
