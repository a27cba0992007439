package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// StreamFormat describes one downloadable stream variant of a video.
type StreamFormat struct {
	ID       string
	Ext      string
	Width    int
	Height   int
	VCodec   string
	ACodec   string
	Bitrate  float64 // total bitrate in kbit/s, 0 when unknown
	Filesize int64   // bytes, 0 when unknown
	URL      string
}

// HasVideo reports whether the format carries a video track.
func (f StreamFormat) HasVideo() bool {
	return f.VCodec != "" && f.VCodec != "none"
}

// HasAudio reports whether the format carries an audio track.
func (f StreamFormat) HasAudio() bool {
	return f.ACodec != "" && f.ACodec != "none"
}

// Progressive reports whether the format carries both tracks and can be
// written out without a mux step.
func (f StreamFormat) Progressive() bool {
	return f.HasVideo() && f.HasAudio()
}

// MediaInfo is the resolver's view of a video: identity, display metadata
// and the available stream formats.
type MediaInfo struct {
	ID         string
	Title      string
	Uploader   string
	WebpageURL string
	UploadDate string
	Duration   time.Duration
	ViewCount  int64
	Formats    []StreamFormat
}

// StreamSelection is the pair of streams chosen for transfer. Audio is nil
// when Video is progressive.
type StreamSelection struct {
	Video StreamFormat
	Audio *StreamFormat
}

// TotalSize returns the combined known size of the selected streams.
func (s StreamSelection) TotalSize() int64 {
	total := s.Video.Filesize
	if s.Audio != nil {
		total += s.Audio.Filesize
	}
	return total
}

// SelectStreams picks the best streams at or below maxHeight: the highest
// video-only track paired with the best audio track, falling back to the
// best progressive track when the lists don't split. Returns
// ErrNoUsableFormat when nothing fits under the cap.
func (m *MediaInfo) SelectStreams(maxHeight int) (*StreamSelection, error) {
	var videoOnly, progressive []StreamFormat
	var audioOnly []StreamFormat

	for _, f := range m.Formats {
		if f.URL == "" {
			continue
		}
		switch {
		case f.Progressive():
			progressive = append(progressive, f)
		case f.HasVideo():
			videoOnly = append(videoOnly, f)
		case f.HasAudio():
			audioOnly = append(audioOnly, f)
		}
	}

	videoOnly = capByHeight(videoOnly, maxHeight)
	progressive = capByHeight(progressive, maxHeight)

	sortByQuality(videoOnly)
	sortByQuality(progressive)
	sortByQuality(audioOnly)

	if len(videoOnly) > 0 && len(audioOnly) > 0 {
		audio := audioOnly[0]
		return &StreamSelection{Video: preferExt(videoOnly, "mp4"), Audio: &audio}, nil
	}
	if len(progressive) > 0 {
		return &StreamSelection{Video: preferExt(progressive, "mp4")}, nil
	}
	return nil, fmt.Errorf("%w (cap %dp)", ErrNoUsableFormat, maxHeight)
}

// capByHeight drops formats above the cap. A cap of 0 means uncapped.
func capByHeight(formats []StreamFormat, maxHeight int) []StreamFormat {
	if maxHeight <= 0 {
		return formats
	}
	kept := formats[:0]
	for _, f := range formats {
		if f.Height <= maxHeight {
			kept = append(kept, f)
		}
	}
	return kept
}

// sortByQuality orders best-first: height, then bitrate, then size.
func sortByQuality(formats []StreamFormat) {
	sort.SliceStable(formats, func(i, j int) bool {
		if formats[i].Height != formats[j].Height {
			return formats[i].Height > formats[j].Height
		}
		if formats[i].Bitrate != formats[j].Bitrate {
			return formats[i].Bitrate > formats[j].Bitrate
		}
		return formats[i].Filesize > formats[j].Filesize
	})
}

// preferExt returns the first format with the wanted container among the
// top quality tier, or the overall best when none matches.
func preferExt(formats []StreamFormat, ext string) StreamFormat {
	best := formats[0]
	for _, f := range formats {
		if f.Height != best.Height {
			break
		}
		if f.Ext == ext {
			return f
		}
	}
	return best
}

const maxFileNameLen = 200

// SafeFileName reduces a video title to a filesystem-safe base name:
// alphanumerics, spaces, dashes, underscores and dots, capped in length.
func SafeFileName(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		}
	}
	name := strings.TrimSpace(b.String())
	if len(name) > maxFileNameLen {
		name = strings.TrimSpace(name[:maxFileNameLen])
	}
	if name == "" {
		name = "video"
	}
	return name
}
