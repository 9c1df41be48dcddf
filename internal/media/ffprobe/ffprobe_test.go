package ffprobe

import "testing"

const sampleJSON = `{
  "streams": [
    {
      "index": 0,
      "codec_name": "h264",
      "codec_type": "video",
      "width": 1920,
      "height": 1080,
      "r_frame_rate": "30000/1001",
      "avg_frame_rate": "30000/1001",
      "duration": "12.512500"
    },
    {
      "index": 1,
      "codec_name": "aac",
      "codec_type": "audio",
      "sample_rate": "48000",
      "channels": 2
    }
  ],
  "format": {
    "filename": "clip.mp4",
    "nb_streams": 2,
    "duration": "12.545000",
    "size": "10485760",
    "format_name": "mov,mp4,m4a,3gp,3g2,mj2"
  }
}`

func TestParseExtractsStreams(t *testing.T) {
	result, err := Parse([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	video, ok := result.VideoStream()
	if !ok {
		t.Fatalf("expected video stream")
	}
	if video.Width != 1920 || video.Height != 1080 {
		t.Fatalf("unexpected dimensions: %dx%d", video.Width, video.Height)
	}
	fps := video.FrameRate()
	if fps < 29.96 || fps > 29.98 {
		t.Fatalf("unexpected frame rate: %v", fps)
	}

	audio, ok := result.AudioStream()
	if !ok {
		t.Fatalf("expected audio stream")
	}
	if audio.Channels != 2 {
		t.Fatalf("unexpected channels: %d", audio.Channels)
	}

	if d := result.DurationSeconds(); d != 12.545 {
		t.Fatalf("unexpected duration: %v", d)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte("not json")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestParseRational(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"25", 25},
		{"30000/1001", 30000.0 / 1001.0},
		{"0/0", 0},
		{"", 0},
		{"24/0", 0},
	}
	for _, tc := range cases {
		if got := parseRational(tc.in); got != tc.want {
			t.Fatalf("parseRational(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestDurationFallsBackToVideoStream(t *testing.T) {
	result, err := Parse([]byte(`{"streams":[{"codec_type":"video","duration":"3.2"}],"format":{}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d := result.DurationSeconds(); d != 3.2 {
		t.Fatalf("expected stream duration fallback, got %v", d)
	}
}
