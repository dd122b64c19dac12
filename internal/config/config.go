package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
)

// AudioProcessor selects the strategy used to cut audio for export.
type AudioProcessor string

const (
	ProcessorRecorder AudioProcessor = "Recorder"
	ProcessorFFMPEG   AudioProcessor = "FFMPEG"
)

// AudioFormat is the target codec family for exported audio.
type AudioFormat string

const (
	FormatMP3  AudioFormat = "mp3"
	FormatOGG  AudioFormat = "ogg"
	FormatOpus AudioFormat = "opus"
)

// FieldMode controls where new content is placed relative to an existing
// field value when updating a card.
type FieldMode string

const (
	FieldModeBefore  FieldMode = "Insert before"
	FieldModeAfter   FieldMode = "Insert after"
	FieldModeReplace FieldMode = "Replace"
)

// DuplicateMode is the scope used for duplicate detection on card creation.
type DuplicateMode string

const (
	DuplicateDisabled   DuplicateMode = "Disabled"
	DuplicateDeck       DuplicateMode = "Deck"
	DuplicateSubdeck    DuplicateMode = "Deck and children"
	DuplicateCollection DuplicateMode = "Collection"
)

// Settings is the explicit configuration object handed to each subsystem.
// Subsystems never read ambient state; tests construct fixtures directly.
//
// Environment Variables:
// Subtitles:
// - SUBTITLES_ENABLE_PERSIST: persist edited subtitles to the store (default: false)
// - SUBTITLES_START_PADDING_MS: global start padding in milliseconds (default: 0)
// - SUBTITLES_END_PADDING_MS: global end padding in milliseconds (default: 0)
//
// Player:
// - PLAYER_ENABLE_COVER: extract cover art from the audio source (default: true)
// - PLAYER_ENABLE_CHAPTERS: extract chapter markers (default: true)
//
// Export:
// - EXPORT_FIELD_MODE: Insert before | Insert after | Replace (default: Insert after)
// - EXPORT_AUDIO_PROCESSOR: Recorder | FFMPEG (default: Recorder)
// - EXPORT_AUDIO_FORMAT: mp3 | ogg | opus (default: mp3)
// - EXPORT_AUDIO_BITRATE: bitrate in kbit/s (default: 128)
// - EXPORT_HASHED_FILENAMES: hash the source name for audio file names (default: true)
// - ENABLE_FFMPEG_LOG: forward toolchain log lines (default: false)
// - FFMPEG_BINARY: toolchain binary (default: ffmpeg)
//
// Anki:
// - ANKI_URL: AnkiConnect endpoint (default: http://localhost:8765)
// - ANKI_KEY: AnkiConnect api key (optional)
// - ANKI_DECK, ANKI_MODEL, ANKI_SENTENCE_FIELD, ANKI_SOUND_FIELD
// - ANKI_ADD_SUBTITLE_TAG, ANKI_ADD_AUDIO_TAG: derived tag toggles (default: false)
// - ANKI_TAG_LIST: comma separated static tags
// - ANKI_DUPLICATE_MODE: Disabled | Deck | Deck and children | Collection
// - ANKI_ALLOW_EMPTY_KEY_FIELD: zero-width placeholder for empty key fields (default: false)
// - ANKI_CLEAR_MERGED_SELECTION: clear merge selection after a clean merge export (default: false)
// - ANKI_TIMEOUT: request timeout in seconds (default: 30)
//
// System:
// - DB_PATH: sqlite database path (default: /app/data/whispercard.db)
// - MAINTENANCE_CRON: schedule for persistence maintenance (default: 0 3 * * *)
type Settings struct {
	SubtitlesEnablePersist      bool `json:"subtitles_enable_persist"`
	SubtitlesGlobalStartPadding int  `json:"subtitles_global_start_padding"`
	SubtitlesGlobalEndPadding   int  `json:"subtitles_global_end_padding"`

	PlayerEnableCover    bool `json:"player_enable_cover"`
	PlayerEnableChapters bool `json:"player_enable_chapters"`

	ExportFieldMode       FieldMode      `json:"export_field_mode"`
	ExportAudioProcessor  AudioProcessor `json:"export_audio_processor"`
	ExportAudioFormat     AudioFormat    `json:"export_audio_format"`
	ExportAudioBitrate    int            `json:"export_audio_bitrate"`
	ExportHashedFilenames bool           `json:"export_hashed_filenames"`
	EnableFFMPEGLog       bool           `json:"enable_ffmpeg_log"`
	FFMPEGBinary          string         `json:"ffmpeg_binary"`

	AnkiURL                  string        `json:"anki_url"`
	AnkiKey                  string        `json:"anki_key"`
	AnkiDeck                 string        `json:"anki_deck"`
	AnkiModel                string        `json:"anki_model"`
	AnkiSentenceField        string        `json:"anki_sentence_field"`
	AnkiSoundField           string        `json:"anki_sound_field"`
	AnkiAddSubtitleTag       bool          `json:"anki_add_subtitle_tag"`
	AnkiAddAudioTag          bool          `json:"anki_add_audio_tag"`
	AnkiTagList              string        `json:"anki_tag_list"`
	AnkiDuplicateMode        DuplicateMode `json:"anki_duplicate_mode"`
	AnkiAllowEmptyKeyField   bool          `json:"anki_allow_empty_key_field"`
	AnkiClearMergedSelection bool          `json:"anki_clear_merged_selection"`
	AnkiTimeout              int           `json:"anki_timeout"`

	DBPath          string `json:"db_path"`
	MaintenanceCron string `json:"maintenance_cron"`
}

// Option is a function type for configuring Settings
type Option func(*Settings)

// Default returns the settings used when nothing is configured.
func Default() *Settings {
	return &Settings{
		SubtitlesEnablePersist:      false,
		SubtitlesGlobalStartPadding: 0,
		SubtitlesGlobalEndPadding:   0,
		PlayerEnableCover:           true,
		PlayerEnableChapters:        true,
		ExportFieldMode:             FieldModeAfter,
		ExportAudioProcessor:        ProcessorRecorder,
		ExportAudioFormat:           FormatMP3,
		ExportAudioBitrate:          128,
		ExportHashedFilenames:       true,
		EnableFFMPEGLog:             false,
		FFMPEGBinary:                "ffmpeg",
		AnkiURL:                     "http://localhost:8765",
		AnkiDuplicateMode:           DuplicateDisabled,
		AnkiTimeout:                 30,
		DBPath:                      "/app/data/whispercard.db",
		MaintenanceCron:             "0 3 * * *",
	}
}

// NewFromEnv creates Settings from environment variables and options.
func NewFromEnv(opts ...Option) (*Settings, error) {
	s := Default()

	s.SubtitlesEnablePersist = getEnvBool("SUBTITLES_ENABLE_PERSIST", s.SubtitlesEnablePersist)
	s.SubtitlesGlobalStartPadding = getEnvInt("SUBTITLES_START_PADDING_MS", s.SubtitlesGlobalStartPadding)
	s.SubtitlesGlobalEndPadding = getEnvInt("SUBTITLES_END_PADDING_MS", s.SubtitlesGlobalEndPadding)
	s.PlayerEnableCover = getEnvBool("PLAYER_ENABLE_COVER", s.PlayerEnableCover)
	s.PlayerEnableChapters = getEnvBool("PLAYER_ENABLE_CHAPTERS", s.PlayerEnableChapters)
	s.ExportFieldMode = FieldMode(getEnvString("EXPORT_FIELD_MODE", string(s.ExportFieldMode)))
	s.ExportAudioProcessor = AudioProcessor(getEnvString("EXPORT_AUDIO_PROCESSOR", string(s.ExportAudioProcessor)))
	s.ExportAudioFormat = AudioFormat(getEnvString("EXPORT_AUDIO_FORMAT", string(s.ExportAudioFormat)))
	s.ExportAudioBitrate = getEnvInt("EXPORT_AUDIO_BITRATE", s.ExportAudioBitrate)
	s.ExportHashedFilenames = getEnvBool("EXPORT_HASHED_FILENAMES", s.ExportHashedFilenames)
	s.EnableFFMPEGLog = getEnvBool("ENABLE_FFMPEG_LOG", s.EnableFFMPEGLog)
	s.FFMPEGBinary = getEnvString("FFMPEG_BINARY", s.FFMPEGBinary)
	s.AnkiURL = getEnvString("ANKI_URL", s.AnkiURL)
	s.AnkiKey = getEnvString("ANKI_KEY", s.AnkiKey)
	s.AnkiDeck = getEnvString("ANKI_DECK", s.AnkiDeck)
	s.AnkiModel = getEnvString("ANKI_MODEL", s.AnkiModel)
	s.AnkiSentenceField = getEnvString("ANKI_SENTENCE_FIELD", s.AnkiSentenceField)
	s.AnkiSoundField = getEnvString("ANKI_SOUND_FIELD", s.AnkiSoundField)
	s.AnkiAddSubtitleTag = getEnvBool("ANKI_ADD_SUBTITLE_TAG", s.AnkiAddSubtitleTag)
	s.AnkiAddAudioTag = getEnvBool("ANKI_ADD_AUDIO_TAG", s.AnkiAddAudioTag)
	s.AnkiTagList = getEnvString("ANKI_TAG_LIST", s.AnkiTagList)
	s.AnkiDuplicateMode = DuplicateMode(getEnvString("ANKI_DUPLICATE_MODE", string(s.AnkiDuplicateMode)))
	s.AnkiAllowEmptyKeyField = getEnvBool("ANKI_ALLOW_EMPTY_KEY_FIELD", s.AnkiAllowEmptyKeyField)
	s.AnkiClearMergedSelection = getEnvBool("ANKI_CLEAR_MERGED_SELECTION", s.AnkiClearMergedSelection)
	s.AnkiTimeout = getEnvInt("ANKI_TIMEOUT", s.AnkiTimeout)
	s.DBPath = getEnvString("DB_PATH", s.DBPath)
	s.MaintenanceCron = getEnvString("MAINTENANCE_CRON", s.MaintenanceCron)

	for _, opt := range opts {
		opt(s)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return s, nil
}

// Validate checks value ranges and enum members.
func (s *Settings) Validate() error {
	switch s.ExportAudioProcessor {
	case ProcessorRecorder, ProcessorFFMPEG:
	default:
		return fmt.Errorf("invalid EXPORT_AUDIO_PROCESSOR: %s", s.ExportAudioProcessor)
	}
	switch s.ExportAudioFormat {
	case FormatMP3, FormatOGG, FormatOpus:
	default:
		return fmt.Errorf("invalid EXPORT_AUDIO_FORMAT: %s", s.ExportAudioFormat)
	}
	switch s.ExportFieldMode {
	case FieldModeBefore, FieldModeAfter, FieldModeReplace:
	default:
		return fmt.Errorf("invalid EXPORT_FIELD_MODE: %s", s.ExportFieldMode)
	}
	switch s.AnkiDuplicateMode {
	case DuplicateDisabled, DuplicateDeck, DuplicateSubdeck, DuplicateCollection:
	default:
		return fmt.Errorf("invalid ANKI_DUPLICATE_MODE: %s", s.AnkiDuplicateMode)
	}
	if s.ExportAudioBitrate <= 0 {
		return fmt.Errorf("EXPORT_AUDIO_BITRATE must be positive")
	}
	if strings.TrimSpace(s.MaintenanceCron) != "" {
		if _, err := cron.ParseStandard(s.MaintenanceCron); err != nil {
			return fmt.Errorf("invalid MAINTENANCE_CRON: %w", err)
		}
	}
	return nil
}

// StartPaddingSeconds returns the global start padding in seconds.
func (s *Settings) StartPaddingSeconds() float64 {
	return float64(s.SubtitlesGlobalStartPadding) / 1000
}

// EndPaddingSeconds returns the global end padding in seconds.
func (s *Settings) EndPaddingSeconds() float64 {
	return float64(s.SubtitlesGlobalEndPadding) / 1000
}

// TagList splits the static tag list setting into sanitized tag values.
func (s *Settings) TagList() []string {
	trimmed := strings.TrimSpace(s.AnkiTagList)
	if trimmed == "" {
		return nil
	}

	parts := strings.Split(trimmed, ",")
	ret := make([]string, 0, len(parts))
	for _, part := range parts {
		tag := strings.TrimSpace(strings.ReplaceAll(strings.TrimSpace(part), " ", "_"))
		if tag != "" {
			ret = append(ret, tag)
		}
	}
	return ret
}

// ResetAnkiTargets clears the remote target settings so the user has to
// pick them again after a failed verification.
func (s *Settings) ResetAnkiTargets() {
	s.AnkiDeck = ""
	s.AnkiModel = ""
	s.AnkiSentenceField = ""
	s.AnkiSoundField = ""
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
