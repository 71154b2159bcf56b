package progression

// The watch guard derives a trustworthy watched ratio from playback events
// without trusting the raw player position: the position can be dragged
// anywhere, the monotone maximum of genuinely played positions cannot.

// Playback session states.
const (
	PlaybackIdle    = "IDLE"
	PlaybackPlaying = "PLAYING"
	PlaybackPaused  = "PAUSED"
)

// Playback event types fed to the guard.
const (
	EventPlay  = "PLAY"
	EventPause = "PAUSE"
	EventTick  = "TICK"
	EventSeek  = "SEEK"
	EventEnded = "ENDED"
)

// SeekAllowance is the forward-scrub slack, in seconds, tolerated past
// MaxWatchedTime before a seek gets clamped. Covers timer and floating
// point jitter.
const SeekAllowance = 1.0

// PlaybackEvent is one discrete player event.
type PlaybackEvent struct {
	Type     string
	Position float64 // seconds, TICK and SEEK only
}

// WatchSession tracks one playback session of a video lesson.
type WatchSession struct {
	State          string
	Duration       float64 // seconds; 0 while media metadata is unavailable
	MaxWatchedTime float64 // seconds, monotonically non-decreasing
	completionSent bool
}

// NewWatchSession opens a session for a video with the given duration.
func NewWatchSession(duration float64) *WatchSession {
	if duration < 0 {
		duration = 0
	}
	return &WatchSession{State: PlaybackIdle, Duration: duration}
}

// Apply folds one playback event into the session and returns the
// effective player position: for seeks this is the possibly clamped
// target, for everything else the event position unchanged. Backward
// seeks (rewatching) are always permitted; forward seeks past
// MaxWatchedTime + SeekAllowance are clamped back to MaxWatchedTime.
func (s *WatchSession) Apply(ev PlaybackEvent) float64 {
	switch ev.Type {
	case EventPlay:
		s.State = PlaybackPlaying
		return s.MaxWatchedTime
	case EventPause:
		s.State = PlaybackPaused
		return s.MaxWatchedTime
	case EventTick:
		if s.State == PlaybackPlaying && ev.Position > s.MaxWatchedTime {
			s.MaxWatchedTime = ev.Position
		}
		return ev.Position
	case EventSeek:
		pos := ev.Position
		if pos < 0 {
			pos = 0
		}
		// No clamping while the duration is unknown: a metadata load
		// failure must never read as a lock violation.
		if s.Duration > 0 && pos > s.MaxWatchedTime+SeekAllowance {
			pos = s.MaxWatchedTime
		}
		return pos
	case EventEnded:
		s.State = PlaybackIdle
		if s.Duration > 0 && s.Duration > s.MaxWatchedTime {
			s.MaxWatchedTime = s.Duration
		}
		return s.MaxWatchedTime
	}
	return ev.Position
}

// WatchedRatio is MaxWatchedTime / Duration clamped to [0,1]. Without a
// duration the ratio is 0; a load failure never reads as completion.
func (s *WatchSession) WatchedRatio() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return clamp01(s.MaxWatchedTime / s.Duration)
}

// CompletionReady reports, exactly once per session, that the watched
// ratio has crossed the completion threshold. The guard is idempotent at
// the source: after the first firing it stays quiet for this session.
func (s *WatchSession) CompletionReady() bool {
	if s.completionSent {
		return false
	}
	if s.WatchedRatio() >= VideoCompletionRatio {
		s.completionSent = true
		return true
	}
	return false
}
