package videos

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"openstream/logging"
	"openstream/mediaprobe"
	"openstream/metrics"
	"openstream/storage"
	"openstream/youtube"
)

// Stage is a step of the upload workflow.
type Stage string

const (
	StageIdle               Stage = "idle"
	StageCollectingMetadata Stage = "collecting-metadata"
	StageUploadingFile      Stage = "uploading-file"
	StageUploadingThumbnail Stage = "uploading-thumbnail"
	StagePersistingRecord   Stage = "persisting-record"
	StageSuccess            Stage = "success"
	StageFailed             Stage = "failed"
)

// InputError is a validation failure detected before any backend call.
type InputError struct{ msg string }

func (e *InputError) Error() string { return e.msg }

var (
	ErrTitleRequired      = &InputError{"title is required"}
	ErrNoFileSelected     = &InputError{"no file selected"}
	ErrFileAndLink        = &InputError{"choose either a file or a link, not both"}
	ErrInvalidExternalURL = &InputError{"unsupported video link; paste a YouTube watch, youtu.be, embed or shorts URL"}
	ErrUploadsDisabled    = &InputError{"uploads are currently disabled"}
)

// StageError reports the stage at which a submission failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// File is an uploaded file spooled to local disk.
type File struct {
	Name        string
	Path        string
	Size        int64
	ContentType string
}

// Submission is one new-video request.
type Submission struct {
	UserID      string
	Title       string
	Description string
	Themes      []string
	File        *File
	ExternalURL string
	Thumbnail   *File
	// DurationSeconds is the client's own reading of the file length, if any.
	DurationSeconds *float64
}

type inserter interface {
	Insert(ctx context.Context, v *Video) error
}

// Uploader runs the submission workflow. Prober and YouTube are optional;
// without them durations are simply left empty.
type Uploader struct {
	Records inserter
	Objects storage.ObjectStore
	Prober  mediaprobe.Prober
	YouTube *youtube.Client
	// OnStage, when set, observes every stage transition.
	OnStage func(Stage)
	Now     func() time.Time
}

func (u *Uploader) enter(s Stage) {
	if u.OnStage != nil {
		u.OnStage(s)
	}
}

func (u *Uploader) now() time.Time {
	if u.Now != nil {
		return u.Now()
	}
	return time.Now()
}

func (u *Uploader) fail(stage Stage, kind Type, err error) (Video, error) {
	u.enter(StageFailed)
	metrics.Uploads.WithLabelValues(string(kind), "failed").Inc()
	return Video{}, &StageError{Stage: stage, Err: err}
}

// Validate checks a submission without touching storage and returns the
// YouTube id for link submissions.
func Validate(sub *Submission) (string, error) {
	sub.Title = strings.TrimSpace(sub.Title)
	sub.ExternalURL = strings.TrimSpace(sub.ExternalURL)
	if sub.Title == "" {
		return "", ErrTitleRequired
	}
	switch {
	case sub.File != nil && sub.ExternalURL != "":
		return "", ErrFileAndLink
	case sub.File == nil && sub.ExternalURL == "":
		return "", ErrNoFileSelected
	case sub.ExternalURL != "":
		id, err := youtube.ParseVideoID(sub.ExternalURL)
		if err != nil {
			return "", ErrInvalidExternalURL
		}
		return id, nil
	}
	return "", nil
}

// Submit validates, stores the media and persists the record.
func (u *Uploader) Submit(ctx context.Context, sub Submission) (Video, error) {
	log := logging.Ctx(ctx)
	u.enter(StageCollectingMetadata)

	kind := TypeNative
	if sub.ExternalURL != "" && sub.File == nil {
		kind = TypeYouTube
	}
	youtubeID, err := Validate(&sub)
	if err != nil {
		return u.fail(StageCollectingMetadata, kind, err)
	}

	v := Video{
		ID:     uuid.New().String(),
		Title:  sub.Title,
		Type:   kind,
		UserID: sub.UserID,
		Themes: CleanThemes(sub.Themes),
	}
	if d := strings.TrimSpace(sub.Description); d != "" {
		v.Description = &d
	}

	var stored []string // bucket/key pairs written by this submission
	cleanup := func() {
		for i := 0; i+1 < len(stored); i += 2 {
			if err := u.Objects.Remove(context.WithoutCancel(ctx), stored[i], stored[i+1]); err != nil {
				log.Warn().Err(err).Str("bucket", stored[i]).Str("key", stored[i+1]).Msg("upload cleanup failed")
			}
		}
	}

	if kind == TypeNative {
		u.enter(StageUploadingFile)
		key := storage.ObjectName(u.now(), sub.File.Name)
		if err := u.putFile(ctx, storage.BucketVideos, key, sub.File); err != nil {
			return u.fail(StageUploadingFile, kind, err)
		}
		stored = append(stored, storage.BucketVideos, key)
		url := u.Objects.PublicURL(storage.BucketVideos, key)
		v.URL, v.StoragePath = &url, &key
		if iso := u.nativeDuration(ctx, sub); iso != "" {
			v.Duration = &iso
		}
	} else {
		url := youtube.WatchURL(youtubeID)
		v.URL, v.YouTubeID = &url, &youtubeID
		if u.YouTube.Available() {
			if iso, err := u.YouTube.Duration(ctx, youtubeID); err != nil {
				log.Warn().Err(err).Str("youtube_id", youtubeID).Msg("youtube duration lookup failed")
			} else {
				v.Duration = &iso
			}
		}
	}

	if sub.Thumbnail != nil {
		u.enter(StageUploadingThumbnail)
		key := storage.ObjectName(u.now(), sub.Thumbnail.Name)
		if err := u.putFile(ctx, storage.BucketThumbnails, key, sub.Thumbnail); err != nil {
			log.Warn().Err(err).Msg("thumbnail upload failed, continuing without it")
		} else {
			stored = append(stored, storage.BucketThumbnails, key)
			thumb := u.Objects.PublicURL(storage.BucketThumbnails, key)
			v.Thumbnail, v.ThumbnailPath = &thumb, &key
		}
	}

	u.enter(StagePersistingRecord)
	if err := u.Records.Insert(ctx, &v); err != nil {
		cleanup()
		return u.fail(StagePersistingRecord, kind, err)
	}

	v.DurationDisplay = FormatDuration(v.Duration)
	u.enter(StageSuccess)
	metrics.Uploads.WithLabelValues(string(kind), "ok").Inc()
	log.Info().Str("video_id", v.ID).Str("type", string(kind)).Msg("video submitted")
	return v, nil
}

func (u *Uploader) putFile(ctx context.Context, bucket, key string, f *File) error {
	fh, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer fh.Close()
	return u.Objects.Put(ctx, bucket, key, fh, f.Size, f.ContentType)
}

// nativeDuration prefers the client's reading and falls back to probing the
// file. Failures are logged and yield "".
func (u *Uploader) nativeDuration(ctx context.Context, sub Submission) string {
	if d := sub.DurationSeconds; d != nil && !math.IsNaN(*d) && !math.IsInf(*d, 0) && *d > 0 {
		return SecondsToISO(*d)
	}
	if u.Prober == nil {
		return ""
	}
	secs, err := u.Prober.Duration(ctx, sub.File.Path)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("file", sub.File.Name).Msg("duration probe failed")
		return ""
	}
	return SecondsToISO(secs)
}
