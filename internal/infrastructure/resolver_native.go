package infrastructure

import (
	"context"
	"fmt"
	"strings"

	"github.com/kkdai/youtube/v2"
	"github.com/yourusername/ytfetch-go/internal/domain"
	"go.uber.org/zap"
)

// NativeResolver resolves streams with the kkdai/youtube client, without
// the yt-dlp binary. Used as a fallback when the binary is missing.
type NativeResolver struct {
	client youtube.Client
	logger *zap.Logger
}

// NewNativeResolver creates a new library-backed resolver
func NewNativeResolver(logger *zap.Logger) *NativeResolver {
	return &NativeResolver{logger: logger}
}

// Name identifies the resolver in logs and failure summaries
func (r *NativeResolver) Name() string {
	return "native"
}

// Resolve fetches video metadata and per-format stream URLs.
func (r *NativeResolver) Resolve(ctx context.Context, url string) (*domain.MediaInfo, error) {
	video, err := r.client.GetVideoContext(ctx, url)
	if err != nil {
		// The client doesn't distinguish network from extraction
		// failures; context errors are the reliable transient signal.
		if ctx.Err() != nil {
			return nil, domain.Transient(fmt.Errorf("native resolve: %w", err))
		}
		return nil, fmt.Errorf("native resolve: %w", err)
	}

	info := &domain.MediaInfo{
		ID:         video.ID,
		Title:      video.Title,
		Uploader:   video.Author,
		WebpageURL: url,
		UploadDate: video.PublishDate.Format("20060102"),
		Duration:   video.Duration,
		ViewCount:  int64(video.Views),
	}

	for i := range video.Formats {
		f := &video.Formats[i]

		streamURL := f.URL
		if streamURL == "" {
			// Ciphered formats need the player JS round trip.
			streamURL, err = r.client.GetStreamURLContext(ctx, video, f)
			if err != nil {
				r.logger.Debug("Skipping format without stream URL",
					zap.Int("itag", f.ItagNo), zap.Error(err))
				continue
			}
		}

		vcodec, acodec := splitMimeCodecs(f.MimeType, f.AudioChannels)
		info.Formats = append(info.Formats, domain.StreamFormat{
			ID:       fmt.Sprintf("%d", f.ItagNo),
			Ext:      extFromMime(f.MimeType),
			Width:    f.Width,
			Height:   f.Height,
			VCodec:   vcodec,
			ACodec:   acodec,
			Bitrate:  float64(f.Bitrate) / 1000,
			Filesize: f.ContentLength,
			URL:      streamURL,
		})
	}

	return info, nil
}

// splitMimeCodecs derives video/audio codec names from a MIME type like
// `video/mp4; codecs="avc1.640028, mp4a.40.2"`.
func splitMimeCodecs(mimeType string, audioChannels int) (vcodec, acodec string) {
	vcodec, acodec = "none", "none"

	codecs := ""
	if idx := strings.Index(mimeType, `codecs="`); idx >= 0 {
		codecs = mimeType[idx+len(`codecs="`):]
		if end := strings.Index(codecs, `"`); end >= 0 {
			codecs = codecs[:end]
		}
	}
	parts := strings.Split(codecs, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	if strings.HasPrefix(mimeType, "audio/") {
		if len(parts) > 0 && parts[0] != "" {
			acodec = parts[0]
		}
		return
	}

	if len(parts) > 0 && parts[0] != "" {
		vcodec = parts[0]
	}
	if len(parts) > 1 {
		acodec = parts[1]
	} else if audioChannels > 0 {
		acodec = "mp4a"
	}
	return
}

// extFromMime maps a MIME type to the container extension yt-dlp would use.
func extFromMime(mimeType string) string {
	base := mimeType
	if idx := strings.Index(base, ";"); idx >= 0 {
		base = base[:idx]
	}
	switch strings.TrimSpace(base) {
	case "video/mp4":
		return "mp4"
	case "audio/mp4":
		return "m4a"
	case "video/webm", "audio/webm":
		return "webm"
	case "video/3gpp":
		return "3gp"
	default:
		if idx := strings.Index(base, "/"); idx >= 0 {
			return base[idx+1:]
		}
		return base
	}
}
