// Package schedule вычисляет время следующего запуска пайплайна
// для режима watch: по cron-выражению или по фиксированному интервалу.
package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений (стандартные 5 полей).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Spec — расписание запусков.
type Spec struct {
	// CronExpr — cron-выражение ("0 9 * * *" — каждый день в 9:00).
	// Если задано, IntervalSec игнорируется.
	CronExpr string

	// IntervalSec — интервал в секундах между запусками.
	IntervalSec int

	// Timezone — часовой пояс для вычисления времени (default: UTC).
	Timezone string
}

// IsCron возвращает true, если расписание использует cron-выражение.
func (s *Spec) IsCron() bool {
	return s.CronExpr != ""
}

// NextDue вычисляет следующее время запуска после from.
// Результат всегда в UTC.
func NextDue(spec *Spec, from time.Time) (time.Time, error) {
	loc := time.UTC
	if spec.Timezone != "" {
		if l, err := time.LoadLocation(spec.Timezone); err == nil {
			loc = l
		}
	}
	fromInTz := from.In(loc)

	if spec.IsCron() {
		parsed, err := cronParser.Parse(spec.CronExpr)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse cron expression %q: %w", spec.CronExpr, err)
		}
		return parsed.Next(fromInTz).UTC(), nil
	}

	if spec.IntervalSec > 0 {
		return fromInTz.Add(time.Duration(spec.IntervalSec) * time.Second).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("schedule has neither cron expression nor interval")
}

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}
