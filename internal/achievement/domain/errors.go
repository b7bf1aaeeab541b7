package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated         = errors.New("unauthenticated")
	ErrMissionNotFound         = errors.New("mission_not_found")
	ErrArtifactTypeMismatch    = errors.New("artifact_type_mismatch")
	ErrAchievementLimitReached = errors.New("achievement_limit_reached")
	ErrDuplicateLink           = errors.New("duplicate_link")
	ErrDuplicateProvider       = errors.New("duplicate_provider_record")
	ErrNoActiveSeason          = errors.New("no_active_season")
	ErrAchievementNotFound     = errors.New("achievement_not_found")
	ErrSubmissionInProgress    = errors.New("submission_in_progress")
	ErrStorage                 = errors.New("storage_error")
	ErrPartialCancellation     = errors.New("partial_cancellation")
)

// ErrorKind groups failures by how the caller should react.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindEligibility ErrorKind = "eligibility"
	KindStorage     ErrorKind = "storage"
	KindPartial     ErrorKind = "partial"
)

// User-facing sentences.
const (
	MessageAchieved               = "ミッションを達成しました！"
	MessageCancelled              = "達成を取り消しました。"
	MessageUnauthenticated        = "認証エラーが発生しました。"
	MessageMissionFetchFailed     = "ミッション情報の取得に失敗しました。"
	MessageArtifactTypeMismatch   = "提出形式がミッションの要件と一致しません。"
	MessageCountFailed            = "ユーザーの達成回数の取得に失敗しました。"
	MessageLimitReached           = "あなたはこのミッションの達成回数の上限に達しています。"
	MessageDuplicateCheckFailed   = "重複チェック中にエラーが発生しました。"
	MessageDuplicateLink          = "記録に失敗しました。同じURLがすでに登録されています。"
	MessageDuplicateProvider      = "この動画へのいいねは既に記録されています"
	MessageSeasonNotFound         = "Current season not found"
	MessageSubmissionInProgress   = "同じミッションの提出を処理中です。しばらくしてから再度お試しください。"
	MessageAchievementFailed      = "ミッション達成の記録に失敗しました"
	MessagePayloadRequired        = "リンク、テキスト、または画像のいずれかは必須です（CHECK制約違反防止）"
	MessageArtifactFailed         = "成果物の保存に失敗しました"
	MessageGeolocationFailed      = "位置情報の保存に失敗しました"
	MessagePostingFailed          = "ポスティング活動の保存に失敗しました"
	MessagePosterFailed           = "ポスター活動の保存に失敗しました"
	MessageAchievementNotFound    = "達成記録が見つからないか、アクセス権限がありません。"
	MessageCancelFailed           = "達成の取り消しに失敗しました"
	MessagePartialCancellation    = "達成の取り消しは完了しましたが、経験値の減算に失敗しました"
	MessageMissingMission         = "ミッションIDが見つかりません。"
	MessageMissingSeason          = "シーズンIDが見つかりません。"
	MessageSubmissionRequired     = "提出内容が必要です"
)

// Error is the failure result of Achieve and Cancel. Message is safe to show
// to the user; Err carries the sentinel for errors.Is.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

func Validation(message string, err error) *Error {
	return &Error{Kind: KindValidation, Message: message, Err: err}
}

func Eligibility(message string, err error) *Error {
	return &Error{Kind: KindEligibility, Message: message, Err: err}
}

// Storage appends the underlying storage message for operators.
func Storage(message string, cause error) *Error {
	if cause == nil {
		return &Error{Kind: KindStorage, Message: message, Err: ErrStorage}
	}
	return &Error{
		Kind:    KindStorage,
		Message: fmt.Sprintf("%s: %s", message, cause.Error()),
		Err:     fmt.Errorf("%w: %w", ErrStorage, cause),
	}
}

// Partial reports a cancellation whose deletion stuck but whose XP
// revocation did not; detail is the user-facing reason.
func Partial(detail string, cause error) *Error {
	msg := MessagePartialCancellation
	if detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, detail)
	}
	err := ErrPartialCancellation
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrPartialCancellation, cause)
	}
	return &Error{Kind: KindPartial, Message: msg, Err: err}
}

// KindOf returns the kind of err, or KindStorage for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}
