package mediaplayer_test

import (
	"strings"
	"testing"

	mediaplayer "github.com/kohtzk/mediaplayer-go"
	"github.com/kohtzk/mediaplayer-go/internal/pipeline/enginemock"
)

func TestNewOverExplicitEngine(t *testing.T) {
	p, err := mediaplayer.New(mediaplayer.Config{
		Engine:      enginemock.New(),
		SpeakerType: mediaplayer.SpeakerAlert,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer p.Shutdown()

	if got := p.GetSpeakerType(); got != mediaplayer.SpeakerAlert {
		t.Errorf("GetSpeakerType = %v, want alert", got)
	}

	id := p.SetSourceStream(strings.NewReader("bytes"), false)
	if id == mediaplayer.ErrorSourceID {
		t.Fatal("SetSourceStream failed")
	}
	if !p.Play(id) {
		t.Error("Play failed")
	}
	if off := p.GetOffset(id); off != mediaplayer.InvalidOffset {
		t.Errorf("GetOffset before playback = %v, want invalid", off)
	}
}
