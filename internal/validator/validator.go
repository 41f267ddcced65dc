package validator

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

var (
	audioExtensions = map[string]bool{
		".mp3":  true,
		".mp4":  true,
		".mpeg": true,
		".mpga": true,
		".m4a":  true,
		".wav":  true,
		".webm": true,
	}
	imageExtensions = map[string]bool{
		".png": true,
	}
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
)

const (
	MaxAudioBytes = 25 << 20
	MaxImageBytes = 4 << 20

	safeNameRunes = 30
)

func init() {
	validate = validator.New()
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

func Validate(s any) error {
	return validate.Struct(s)
}

// Check validates s and flattens the failures into field messages.
func Check(s any) ValidationResult {
	result := ValidationResult{Valid: true, Errors: []ValidationError{}}

	err := validate.Struct(s)
	if err == nil {
		return result
	}
	result.Valid = false

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		result.Errors = append(result.Errors, ValidationError{Message: err.Error()})
		return result
	}
	for _, fe := range verrs {
		result.Errors = append(result.Errors, ValidationError{Field: fe.Field(), Message: message(fe)})
	}
	return result
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// Error joins the messages of an invalid result.
func (r ValidationResult) Error() string {
	parts := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		if e.Field == "" {
			parts[i] = e.Message
			continue
		}
		parts[i] = e.Field + " " + e.Message
	}
	return strings.Join(parts, "; ")
}

// ValidateAudioFile checks an upload against the transcription endpoint's
// accepted formats and size limit.
func ValidateAudioFile(filename string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !audioExtensions[ext] {
		return fmt.Errorf("unsupported audio format %q. Use: %s", ext, strings.Join(AudioFormats(), ", "))
	}
	if size > MaxAudioBytes {
		return fmt.Errorf("audio file is %d bytes, limit is 25 MB", size)
	}
	return nil
}

// AudioFormats lists accepted transcription extensions without the dot.
func AudioFormats() []string {
	return []string{"mp3", "mp4", "mpeg", "mpga", "m4a", "wav", "webm"}
}

// ValidateImageUpload checks a source image or mask for variation and edit
// requests, which accept square PNGs under 4 MB.
func ValidateImageUpload(filename string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !imageExtensions[ext] {
		return fmt.Errorf("unsupported image format %q. Use: png", ext)
	}
	if size > MaxImageBytes {
		return fmt.Errorf("image is %d bytes, limit is 4 MB", size)
	}
	return nil
}

// SafeName derives a file stem from free text: the first 30 characters,
// keeping letters, digits, spaces, '-' and '_', trailing spaces dropped and
// the remaining spaces turned into underscores.
func SafeName(text string) string {
	runes := []rune(text)
	if len(runes) > safeNameRunes {
		runes = runes[:safeNameRunes]
	}

	var b strings.Builder
	for _, r := range runes {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimRight(b.String(), " "), " ", "_")
}

// SanitizeFilename makes a user supplied file name safe to join with an
// output directory.
func SanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	name = unsafeChars.ReplaceAllString(name, "_")

	if len(name) > 50 {
		name = name[:50]
	}

	return name + ext
}
