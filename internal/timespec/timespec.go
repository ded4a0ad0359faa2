package timespec

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// TimestampLayout 绝对时间的字面格式（YYYY-MM-DD HH:MM:SS，本地时间）
const TimestampLayout = "2006-01-02 15:04:05"

var (
	// ErrInvalidTimeFormat 时间范围或绝对时间格式错误
	ErrInvalidTimeFormat = errors.New("invalid time format")
	// ErrInvalidStepFormat 采样步长格式错误
	ErrInvalidStepFormat = errors.New("invalid step format")
)

var (
	rangePattern     = regexp.MustCompile(`^(\d+)([mhd])$`)
	stepPattern      = regexp.MustCompile(`^(\d+)([smhd])$`)
	timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`)
)

var units = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
}

// Window 查询时间窗口，Start 严格早于 End
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration 窗口长度
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// ParseWindow 解析查询时间窗口
// start 和 end 都非空时按字面格式解析为本地时间，否则以 now 为终点向前推 timeRange
func ParseWindow(start, end, timeRange string, now time.Time) (Window, error) {
	if start != "" && end != "" {
		startTime, err := ParseTimestamp(start)
		if err != nil {
			return Window{}, err
		}
		endTime, err := ParseTimestamp(end)
		if err != nil {
			return Window{}, err
		}
		if !startTime.Before(endTime) {
			return Window{}, fmt.Errorf("%w: start %q is not before end %q", ErrInvalidTimeFormat, start, end)
		}
		return Window{Start: startTime, End: endTime}, nil
	}

	d, err := ParseRange(timeRange)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: now.Add(-d), End: now}, nil
}

// ParseTimestamp 按 YYYY-MM-DD HH:MM:SS 解析本地时间
func ParseTimestamp(s string) (time.Time, error) {
	if !timestampPattern.MatchString(s) {
		return time.Time{}, fmt.Errorf("%w: %q does not match YYYY-MM-DD HH:MM:SS", ErrInvalidTimeFormat, s)
	}
	t, err := time.ParseInLocation(TimestampLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidTimeFormat, err)
	}
	return t, nil
}

// ParseRange 解析时间范围（如 10m、1h、1d），不接受秒
func ParseRange(s string) (time.Duration, error) {
	return parse(rangePattern, s, ErrInvalidTimeFormat)
}

// ParseStep 解析采样步长（如 15s、1m、1h、1d）
func ParseStep(s string) (time.Duration, error) {
	return parse(stepPattern, s, ErrInvalidStepFormat)
}

func parse(pattern *regexp.Regexp, s string, kind error) (time.Duration, error) {
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", kind, s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", kind, s, err)
	}
	unit := units[m[2]]
	if n <= 0 || n > int64(1<<63-1)/int64(unit) {
		return 0, fmt.Errorf("%w: %q out of range", kind, s)
	}
	return time.Duration(n) * unit, nil
}
