package engine

const (
	// SectionSize is the number of questions per pacing section.
	SectionSize = 50
	// LongExamThreshold is the question count from which sections are shown.
	LongExamThreshold = 200
)

// Section describes the pacing block a question belongs to.
type Section struct {
	Number   int  `json:"number"`
	Total    int  `json:"total"`
	Start    int  `json:"start"`
	End      int  `json:"end"`
	Boundary bool `json:"boundary"`
}

// IsLongExam reports whether an exam of total questions is paced in sections.
func IsLongExam(total int) bool {
	return total >= LongExamThreshold
}

// SectionNumber returns the 1-based section of a question index.
func SectionNumber(index int) int {
	return index/SectionSize + 1
}

// IsSectionBoundary reports whether index opens a new section of a long exam.
func IsSectionBoundary(index, total int) bool {
	return IsLongExam(total) && index%SectionSize == 0 && index > 0
}

// SectionFor returns the banner data for index, or nil when the exam is not long.
func SectionFor(index, total int) *Section {
	if !IsLongExam(total) {
		return nil
	}
	n := SectionNumber(index)
	start := (n - 1) * SectionSize
	end := start + SectionSize - 1
	if end > total-1 {
		end = total - 1
	}
	return &Section{
		Number:   n,
		Total:    (total + SectionSize - 1) / SectionSize,
		Start:    start,
		End:      end,
		Boundary: IsSectionBoundary(index, total),
	}
}
