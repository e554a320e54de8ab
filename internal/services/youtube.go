package services

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	ytapi "github.com/hightemp/youtube-transcript-api-go/api"
	yt "github.com/kkdai/youtube/v2"
)

// Transcriber converts raw audio into text. Satisfied by the Gemini gateway.
type Transcriber interface {
	TranscribeAudio(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// YouTubeService resolves course context from a video: captions first, audio
// transcription as the last resort.
type YouTubeService struct {
	httpClient    *http.Client
	transcriptAPI *ytapi.YouTubeTranscriptApi
	ytClient      *yt.Client
	transcriber   Transcriber
}

func NewYouTubeService(transcriber Transcriber) *YouTubeService {
	return &YouTubeService{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		transcriptAPI: ytapi.NewYouTubeTranscriptApi(),
		ytClient:      &yt.Client{},
		transcriber:   transcriber,
	}
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ParseVideoID accepts watch URLs, youtu.be short links, and bare video IDs.
func ParseVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if videoIDPattern.MatchString(raw) {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", &ValidationError{Fields: map[string]string{"youtube_url": "Invalid YouTube URL"}}
	}

	var id string
	switch {
	case strings.HasSuffix(u.Host, "youtu.be"):
		id = strings.TrimPrefix(u.Path, "/")
	case strings.HasSuffix(u.Host, "youtube.com"):
		if strings.HasPrefix(u.Path, "/shorts/") || strings.HasPrefix(u.Path, "/embed/") {
			parts := strings.Split(strings.Trim(u.Path, "/"), "/")
			if len(parts) == 2 {
				id = parts[1]
			}
		} else {
			id = u.Query().Get("v")
		}
	}

	if !videoIDPattern.MatchString(id) {
		return "", &ValidationError{Fields: map[string]string{"youtube_url": "Could not extract a video ID from the URL"}}
	}
	return id, nil
}

// ContextFromVideo tries captions, then the legacy timedtext endpoint, then
// audio download plus transcription.
func (s *YouTubeService) ContextFromVideo(ctx context.Context, videoID string) (string, error) {
	transcript, err := s.getTranscript(videoID)
	if err == nil {
		return normalizeExtractedText(transcript), nil
	}
	log.Printf("Caption lookup failed for video %s, falling back to audio transcription: %v", videoID, err)

	if s.transcriber == nil {
		return "", &UnavailableError{Message: "No captions available and audio transcription is not configured"}
	}

	audio, mimeType, err := s.downloadAudio(videoID)
	if err != nil {
		return "", &UnavailableError{Message: "Could not retrieve captions or audio for this video"}
	}

	text, err := s.transcriber.TranscribeAudio(ctx, audio, mimeType)
	if err != nil {
		return "", &UnavailableError{Message: "Audio transcription failed. Please try again."}
	}

	text = normalizeExtractedText(text)
	if text == "" {
		return "", &UnavailableError{Message: "Audio transcription produced no text"}
	}
	return text, nil
}

func (s *YouTubeService) getTranscript(videoID string) (string, error) {
	transcript, err := s.transcriptAPI.GetTranscript(videoID, []string{"en", "en-US", "en-GB"})
	if err != nil {
		// Any language beats no transcript
		transcript, err = s.transcriptAPI.GetTranscript(videoID, nil)
		if err != nil {
			legacy, legacyErr := s.getTranscriptViaTimedText(videoID)
			if legacyErr == nil {
				return legacy, nil
			}
			return "", fmt.Errorf("transcript API failed (%v) and timedtext fallback failed (%v)", err, legacyErr)
		}
	}

	if len(transcript.Entries) == 0 {
		return "", fmt.Errorf("subtitle track is empty")
	}

	var b strings.Builder
	for _, entry := range transcript.Entries {
		text := strings.TrimSpace(entry.Text)
		if text == "" {
			continue
		}
		b.WriteString(text)
		b.WriteString(" ")
	}

	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("subtitle text resolved to empty content")
	}
	return out, nil
}

type timedTextXML struct {
	XMLName xml.Name       `xml:"transcript"`
	Texts   []timedTextRow `xml:"text"`
}

type timedTextRow struct {
	Start string `xml:"start,attr"`
	Dur   string `xml:"dur,attr"`
	Text  string `xml:",chardata"`
}

func (s *YouTubeService) getTranscriptViaTimedText(videoID string) (string, error) {
	pageURL := fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
	req, _ := http.NewRequest("GET", pageURL, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch YouTube page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read YouTube page: %w", err)
	}

	captionURL, err := extractCaptionURL(string(body))
	if err != nil {
		return "", err
	}

	captionResp, err := s.httpClient.Get(captionURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch captions: %w", err)
	}
	defer captionResp.Body.Close()

	captionBody, err := io.ReadAll(captionResp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read captions: %w", err)
	}

	return parseCaptionsXML(captionBody)
}

var (
	captionTracksPattern  = regexp.MustCompile(`"captionTracks"\s*:\s*\[(.*?)\],\s*"`)
	captionBaseURLPattern = regexp.MustCompile(`"baseUrl"\s*:\s*"(.*?)"`)
)

func extractCaptionURL(pageHTML string) (string, error) {
	matches := captionTracksPattern.FindStringSubmatch(pageHTML)
	if len(matches) < 2 {
		return "", fmt.Errorf("no captions available for this video")
	}

	urlMatches := captionBaseURLPattern.FindStringSubmatch(matches[1])
	if len(urlMatches) < 2 {
		return "", fmt.Errorf("caption track found but baseUrl missing")
	}

	u := urlMatches[1]
	u = strings.ReplaceAll(u, `&`, "&")
	u = strings.ReplaceAll(u, `\/`, "/")
	return u, nil
}

func parseCaptionsXML(data []byte) (string, error) {
	var tt timedTextXML
	if err := xml.Unmarshal(data, &tt); err != nil {
		return "", fmt.Errorf("failed to parse captions XML: %w", err)
	}

	var parts []string
	for _, t := range tt.Texts {
		text := strings.TrimSpace(html.UnescapeString(t.Text))
		if text != "" {
			parts = append(parts, text)
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("captions XML empty")
	}
	return strings.Join(parts, " "), nil
}

// maxAudioBytes caps downloaded audio so a long video cannot exhaust memory.
const maxAudioBytes = 100 * 1024 * 1024

func (s *YouTubeService) downloadAudio(videoID string) ([]byte, string, error) {
	video, err := s.ytClient.GetVideo(videoID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch video metadata: %w", err)
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return nil, "", fmt.Errorf("no audio formats available")
	}

	best := formats[0]
	for _, f := range formats {
		if f.Bitrate > best.Bitrate {
			best = f
		}
	}

	stream, _, err := s.ytClient.GetStream(video, &best)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open audio stream: %w", err)
	}
	defer stream.Close()

	limited := io.LimitReader(stream, maxAudioBytes+1)
	audio, err := io.ReadAll(limited)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read audio stream: %w", err)
	}
	if len(audio) > maxAudioBytes {
		return nil, "", fmt.Errorf("audio stream exceeds %d MB limit", maxAudioBytes/(1024*1024))
	}

	mimeType := strings.TrimSpace(strings.Split(best.MimeType, ";")[0])
	if mimeType == "" {
		mimeType = "audio/mp4"
	}
	return audio, mimeType, nil
}
