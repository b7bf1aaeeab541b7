package domain

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Limits are the rule values submissions are validated against.
type Limits struct {
	MaxPostingCount int
}

// DefaultLimits matches the published form limits.
var DefaultLimits = Limits{MaxPostingCount: 2000}

// ValidationError describes the first invalid field of a submission.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidSubmission
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

var (
	validate = validator.New()

	youtubeVideoURL = regexp.MustCompile(`^https?://(?:(?:www|m)\.)?(?:youtube\.com/(?:watch\?v=|shorts/|live/)|youtu\.be/)[A-Za-z0-9_-]+(?:[?&#].*)?$`)
)

// Prefectures lists the 47 prefectures a poster board can belong to.
var Prefectures = []string{
	"北海道", "青森県", "岩手県", "宮城県", "秋田県", "山形県", "福島県",
	"茨城県", "栃木県", "群馬県", "埼玉県", "千葉県", "東京都", "神奈川県",
	"新潟県", "富山県", "石川県", "福井県", "山梨県", "長野県", "岐阜県",
	"静岡県", "愛知県", "三重県", "滋賀県", "京都府", "大阪府", "兵庫県",
	"奈良県", "和歌山県", "鳥取県", "島根県", "岡山県", "広島県", "山口県",
	"徳島県", "香川県", "愛媛県", "高知県", "福岡県", "佐賀県", "長崎県",
	"熊本県", "大分県", "宮崎県", "鹿児島県", "沖縄県",
}

// IsYouTubeVideoURL reports whether raw points at a single YouTube video.
func IsYouTubeVideoURL(raw string) bool {
	return youtubeVideoURL.MatchString(raw)
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func tooLong(s string, max int) bool { return utf8.RuneCountInString(s) > max }

func (s LinkSubmission) Validate(Limits) error {
	if blank(s.URL) {
		return invalid("link_url", "リンクURLが必要です")
	}
	if validate.Var(s.URL, "url") != nil {
		return invalid("link_url", "有効なURLを入力してください")
	}
	return nil
}

func (s TextSubmission) Validate(Limits) error {
	if blank(s.Text) {
		return invalid("text", "テキストが必要です")
	}
	return nil
}

func (s EmailSubmission) Validate(Limits) error {
	if blank(s.Email) {
		return invalid("email", "メールアドレスが必要です")
	}
	if validate.Var(s.Email, "email") != nil {
		return invalid("email", "有効なメールアドレスを入力してください")
	}
	return nil
}

func (s ImageSubmission) Validate(Limits) error {
	if blank(s.ImagePath) {
		return invalid("image_path", "画像が必要です")
	}
	return nil
}

func (s ImageWithGeolocationSubmission) Validate(Limits) error {
	if blank(s.ImagePath) {
		return invalid("image_path", "画像が必要です")
	}
	if validate.Var(s.Lat, "latitude") != nil {
		return invalid("lat", "有効な緯度を入力してください")
	}
	if validate.Var(s.Lon, "longitude") != nil {
		return invalid("lon", "有効な経度を入力してください")
	}
	return nil
}

func (NoneSubmission) Validate(Limits) error { return nil }

func (s PostingSubmission) Validate(limits Limits) error {
	if s.PostingCount < 1 {
		return invalid("posting_count", "ポスティング枚数は1枚以上で入力してください")
	}
	max := limits.MaxPostingCount
	if max <= 0 {
		max = DefaultLimits.MaxPostingCount
	}
	if s.PostingCount > max {
		return invalid("posting_count", fmt.Sprintf("ポスティング枚数は%d枚以下で入力してください", max))
	}
	return nil
}

func (s PosterSubmission) Validate(Limits) error {
	if blank(s.Prefecture) {
		return invalid("prefecture", "都道府県を選択してください")
	}
	if !slices.Contains(Prefectures, s.Prefecture) {
		return invalid("prefecture", "有効な都道府県を選択してください")
	}
	switch {
	case s.City == "":
		return invalid("city", "市町村＋区を入力してください")
	case tooLong(s.City, 100):
		return invalid("city", "市町村＋区は100文字以下で入力してください")
	case s.BoardNumber == "":
		return invalid("board_number", "番号を入力してください")
	case tooLong(s.BoardNumber, 20):
		return invalid("board_number", "番号は20文字以下で入力してください")
	case tooLong(deref(s.BoardName), 100):
		return invalid("board_name", "名前は100文字以下で入力してください")
	case tooLong(deref(s.BoardNote), 200):
		return invalid("board_note", "状況は200文字以下で入力してください")
	case tooLong(deref(s.BoardAddress), 200):
		return invalid("board_address", "住所は200文字以下で入力してください")
	}
	if s.BoardLat != nil && validate.Var(*s.BoardLat, "latitude") != nil {
		return invalid("board_lat", "緯度は-90から90の間の数値で入力してください")
	}
	if s.BoardLong != nil && validate.Var(*s.BoardLong, "longitude") != nil {
		return invalid("board_long", "経度は-180から180の間の数値で入力してください")
	}
	return nil
}

func (QuizSubmission) Validate(Limits) error { return nil }

func (LinkAccessSubmission) Validate(Limits) error { return nil }

func (s YouTubeSubmission) Validate(Limits) error {
	if blank(s.URL) {
		return invalid("link_url", "YouTube動画のURLが必要です")
	}
	if !IsYouTubeVideoURL(s.URL) {
		return invalid("link_url", "有効なYouTube動画のURLを入力してください")
	}
	return nil
}

func (s YouTubeCommentSubmission) Validate(Limits) error {
	if blank(s.URL) {
		return invalid("link_url", "YouTubeコメントのURLが必要です")
	}
	return nil
}
