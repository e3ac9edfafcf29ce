/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package streaming

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Trigger decides when the micro-batches of a query run.
type Trigger struct {
	once     bool
	schedule cron.Schedule
	desc     string
}

// intervalSchedule fires a fixed interval after the given time, sub-second part included.
type intervalSchedule time.Duration

func (s intervalSchedule) Next(t time.Time) time.Time {
	return t.Add(time.Duration(s))
}

// ProcessingTime returns a trigger firing every interval, measured from the start of the previous batch. A batch that
// overruns the interval is followed by the next one right away.
func ProcessingTime(interval time.Duration) (Trigger, error) {
	if interval <= 0 {
		return Trigger{}, fmt.Errorf("trigger interval must be positive, got %v", interval)
	}
	return Trigger{schedule: intervalSchedule(interval), desc: "ProcessingTime(" + interval.String() + ")"}, nil
}

// Once returns a trigger running a single micro-batch over everything available, after which the query terminates.
func Once() Trigger {
	return Trigger{once: true, desc: "Once"}
}

// ParseTrigger parses "once", a duration such as "20s" or a cron spec such as "@every 20s" or "*/5 * * * *".
func ParseTrigger(spec string) (Trigger, error) {
	spec = strings.TrimSpace(spec)
	switch {
	case spec == "":
		return Trigger{}, fmt.Errorf("empty trigger")
	case strings.EqualFold(spec, "once"):
		return Once(), nil
	case strings.HasPrefix(spec, "@every "):
		d, err := time.ParseDuration(strings.TrimSpace(strings.TrimPrefix(spec, "@every ")))
		if err != nil {
			return Trigger{}, fmt.Errorf("invalid trigger %q: %w", spec, err)
		}
		return ProcessingTime(d)
	case strings.HasPrefix(spec, "@") || strings.Contains(spec, " "):
		s, err := cron.ParseStandard(spec)
		if err != nil {
			return Trigger{}, fmt.Errorf("invalid trigger %q: %w", spec, err)
		}
		return Trigger{schedule: s, desc: "Cron(" + spec + ")"}, nil
	default:
		d, err := time.ParseDuration(spec)
		if err != nil {
			return Trigger{}, fmt.Errorf("invalid trigger %q: %w", spec, err)
		}
		return ProcessingTime(d)
	}
}

// IsOnce tells whether the query stops after one micro-batch.
func (t Trigger) IsOnce() bool {
	return t.once
}

func (t Trigger) valid() bool {
	return t.once || t.schedule != nil
}

// next returns when the batch following the one started at start is due.
func (t Trigger) next(start time.Time) time.Time {
	return t.schedule.Next(start)
}

func (t Trigger) String() string {
	return t.desc
}
