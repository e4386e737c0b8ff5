package progress

import "errors"

// ErrInvalidTransition is returned when a strict workflow operation is
// attempted from a state that does not permit it. The prior record is
// left unchanged.
var ErrInvalidTransition = errors.New("progress: invalid status transition")

// ErrOperationInFlight is returned when an operation for the same
// (student, milestone) pair is already pending. The backing service is
// last-write-wins with no version check, so the in-flight guard is the
// only protection against double submission.
var ErrOperationInFlight = errors.New("progress: operation already in flight")

// ErrUnknownSurah is returned for surah numbers outside 1..114.
var ErrUnknownSurah = errors.New("progress: unknown surah number")

// ErrUnknownPillar is returned for pillar values outside the Talbiyah
// three.
var ErrUnknownPillar = errors.New("progress: unknown pillar")
