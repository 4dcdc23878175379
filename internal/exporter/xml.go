package exporter

import (
	"encoding/xml"
	"strconv"
	"time"
)

type xmlSuite struct {
	XMLName        xml.Name   `xml:"TestSuiteResult"`
	RunID          string     `xml:"RunId"`
	StartTime      string     `xml:"StartTime"`
	EndTime        string     `xml:"EndTime"`
	TotalDuration  string     `xml:"TotalDuration"`
	TotalTestCount int        `xml:"TotalTestCount"`
	PassedCount    int        `xml:"PassedCount"`
	FailedCount    int        `xml:"FailedCount"`
	SkippedCount   int        `xml:"SkippedCount"`
	SuccessRate    string     `xml:"SuccessRate"`
	AllTestsPassed bool       `xml:"AllTestsPassed"`
	TestClasses    []xmlClass `xml:"TestClass"`
}

type xmlClass struct {
	Name         string    `xml:"name,attr"`
	DisplayName  string    `xml:"displayName,attr"`
	PassedCount  int       `xml:"passedCount,attr"`
	FailedCount  int       `xml:"failedCount,attr"`
	SkippedCount int       `xml:"skippedCount,attr"`
	TotalCount   int       `xml:"totalCount,attr"`
	Tests        []xmlTest `xml:"Test"`
}

type xmlTest struct {
	Name           string `xml:"name,attr"`
	DisplayName    string `xml:"displayName,attr"`
	Status         string `xml:"status,attr"`
	StartTime      string `xml:"startTime,attr"`
	EndTime        string `xml:"endTime,attr"`
	Duration       string `xml:"duration,attr"`
	ErrorMessage   string `xml:"ErrorMessage,omitempty"`
	ScreenshotPath string `xml:"ScreenshotPath,omitempty"`
}

func marshalXML(r Report) ([]byte, error) {
	doc := xmlSuite{
		RunID:          r.RunID,
		StartTime:      formatTime(r.StartTime),
		EndTime:        formatTime(r.EndTime),
		TotalDuration:  r.Duration.String(),
		TotalTestCount: r.Total,
		PassedCount:    r.Passed,
		FailedCount:    r.Failed,
		SkippedCount:   r.Skipped,
		SuccessRate:    strconv.FormatFloat(r.SuccessRate, 'f', 2, 64),
		AllTestsPassed: r.AllPassed,
	}

	for _, c := range r.Classes {
		xc := xmlClass{
			Name:         c.Name,
			DisplayName:  c.DisplayName,
			PassedCount:  c.Passed,
			FailedCount:  c.Failed,
			SkippedCount: c.Skipped,
			TotalCount:   c.Total,
		}

		for _, t := range c.Tests {
			xc.Tests = append(
				xc.Tests, xmlTest{
					Name:           t.Name,
					DisplayName:    t.DisplayName,
					Status:         t.Status.String(),
					StartTime:      formatTime(t.StartTime),
					EndTime:        formatTime(t.EndTime),
					Duration:       t.Duration.String(),
					ErrorMessage:   t.ErrorMessage,
					ScreenshotPath: t.ScreenshotPath,
				},
			)
		}

		doc.TestClasses = append(doc.TestClasses, xc)
	}

	b, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(xml.Header)+len(b)+1)
	out = append(out, xml.Header...)
	out = append(out, b...)

	return append(out, '\n'), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.Format(timeLayout)
}
