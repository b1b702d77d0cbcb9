package engine

import "time"

const (
	// LongExamAutosavePeriod applies to exams of LongExamThreshold questions or more.
	LongExamAutosavePeriod = 15 * time.Second
	// DefaultAutosavePeriod applies to every other exam.
	DefaultAutosavePeriod = 30 * time.Second
)

// AutosaveSchedule holds the two cadences an exam can be saved at.
type AutosaveSchedule struct {
	LongExam time.Duration
	Default  time.Duration
}

// DefaultAutosaveSchedule returns the standard 15s/30s cadences.
func DefaultAutosaveSchedule() AutosaveSchedule {
	return AutosaveSchedule{
		LongExam: LongExamAutosavePeriod,
		Default:  DefaultAutosavePeriod,
	}
}

// Period selects the cadence for an exam of total questions.
func (s AutosaveSchedule) Period(total int) time.Duration {
	if IsLongExam(total) {
		return s.LongExam
	}
	return s.Default
}

// AutosavePeriod selects the default cadence for an exam of total questions.
func AutosavePeriod(total int) time.Duration {
	return DefaultAutosaveSchedule().Period(total)
}
