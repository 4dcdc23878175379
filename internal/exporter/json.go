package exporter

import (
	"encoding/json"
	"time"
)

type jsonSuite struct {
	RunID          string      `json:"runId"`
	StartTime      time.Time   `json:"startTime"`
	EndTime        time.Time   `json:"endTime"`
	TotalDuration  string      `json:"totalDuration"`
	DurationMs     int64       `json:"durationMs"`
	TotalTestCount int         `json:"totalTestCount"`
	PassedCount    int         `json:"passedCount"`
	FailedCount    int         `json:"failedCount"`
	SkippedCount   int         `json:"skippedCount"`
	SuccessRate    float64     `json:"successRate"`
	AllTestsPassed bool        `json:"allTestsPassed"`
	TestClasses    []jsonClass `json:"testClasses"`
}

type jsonClass struct {
	ClassName    string     `json:"className"`
	DisplayName  string     `json:"displayName,omitempty"`
	PassedCount  int        `json:"passedCount"`
	FailedCount  int        `json:"failedCount"`
	SkippedCount int        `json:"skippedCount"`
	TotalCount   int        `json:"totalCount"`
	Tests        []jsonTest `json:"tests"`
}

type jsonTest struct {
	Name           string `json:"testName"`
	DisplayName    string `json:"displayName,omitempty"`
	ClassName      string `json:"testClassName,omitempty"`
	Category       string `json:"category,omitempty"`
	Status         string `json:"status"`
	StartTime      string `json:"startTime,omitempty"`
	EndTime        string `json:"endTime,omitempty"`
	Duration       string `json:"duration"`
	DurationMs     int64  `json:"durationMs"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
	ScreenshotPath string `json:"screenshotPath,omitempty"`
}

func marshalJSON(r Report) ([]byte, error) {
	doc := jsonSuite{
		RunID:          r.RunID,
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		TotalDuration:  r.Duration.String(),
		DurationMs:     r.Duration.Milliseconds(),
		TotalTestCount: r.Total,
		PassedCount:    r.Passed,
		FailedCount:    r.Failed,
		SkippedCount:   r.Skipped,
		SuccessRate:    r.SuccessRate,
		AllTestsPassed: r.AllPassed,
		TestClasses:    make([]jsonClass, 0, len(r.Classes)),
	}

	for _, c := range r.Classes {
		jc := jsonClass{
			ClassName:    c.Name,
			DisplayName:  c.DisplayName,
			PassedCount:  c.Passed,
			FailedCount:  c.Failed,
			SkippedCount: c.Skipped,
			TotalCount:   c.Total,
			Tests:        make([]jsonTest, 0, len(c.Tests)),
		}

		for _, t := range c.Tests {
			jc.Tests = append(
				jc.Tests, jsonTest{
					Name:           t.Name,
					DisplayName:    t.DisplayName,
					ClassName:      t.Class,
					Category:       t.Category,
					Status:         t.Status.String(),
					StartTime:      formatRFC3339(t.StartTime),
					EndTime:        formatRFC3339(t.EndTime),
					Duration:       t.Duration.String(),
					DurationMs:     t.Duration.Milliseconds(),
					ErrorMessage:   t.ErrorMessage,
					ScreenshotPath: t.ScreenshotPath,
				},
			)
		}

		doc.TestClasses = append(doc.TestClasses, jc)
	}

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}

	return append(b, '\n'), nil
}

func formatRFC3339(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.Format(time.RFC3339Nano)
}
