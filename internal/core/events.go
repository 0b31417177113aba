package core

import "github.com/book-expert/events"

// SpeechRequestedEvent asks the worker to synthesize one text blob.
// The text itself lives in the object store under TextKey.
type SpeechRequestedEvent struct {
	Header    events.EventHeader `json:"Header"`
	TextKey   string             `json:"TextKey"`
	Style     string             `json:"Style"`
	Intensity int                `json:"Intensity"`
	Engine    string             `json:"Engine"`
	Voice     string             `json:"Voice"`
	Speed     float64            `json:"Speed"`
	Seed      int64              `json:"Seed"`
	Language  string             `json:"Language"`
}

// SpeechSynthesizedEvent is the worker's reply once audio and its sidecar
// metadata have been uploaded.
type SpeechSynthesizedEvent struct {
	Header          events.EventHeader `json:"Header"`
	AudioKey        string             `json:"AudioKey"`
	MetadataKey     string             `json:"MetadataKey"`
	EngineUsed      string             `json:"EngineUsed"`
	DurationSeconds float64            `json:"DurationSeconds"`
	SegmentCount    int                `json:"SegmentCount"`
	WordErrorRate   float64            `json:"WordErrorRate"`
}
