package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeSubmission decodes raw into the submission variant for t.
// Types that carry no fields ignore raw entirely.
func DecodeSubmission(t ArtifactType, raw json.RawMessage) (Submission, error) {
	switch t {
	case ArtifactTypeNone:
		return NoneSubmission{}, nil
	case ArtifactTypeQuiz:
		return QuizSubmission{}, nil
	case ArtifactTypeLinkAccess:
		return LinkAccessSubmission{}, nil
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		if _, ok := ParseArtifactType(string(t)); !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidArtifactType, t)
		}
		return nil, &ValidationError{Field: "artifact", Message: "提出内容が必要です"}
	}

	switch t {
	case ArtifactTypeLink:
		return unmarshal[LinkSubmission](raw)
	case ArtifactTypeText:
		return unmarshal[TextSubmission](raw)
	case ArtifactTypeEmail:
		return unmarshal[EmailSubmission](raw)
	case ArtifactTypeImage:
		return unmarshal[ImageSubmission](raw)
	case ArtifactTypeImageWithGeolocation:
		return unmarshal[ImageWithGeolocationSubmission](raw)
	case ArtifactTypePosting:
		return unmarshal[PostingSubmission](raw)
	case ArtifactTypePoster:
		return unmarshal[PosterSubmission](raw)
	case ArtifactTypeYouTube:
		return unmarshal[YouTubeSubmission](raw)
	case ArtifactTypeYouTubeComment:
		return unmarshal[YouTubeCommentSubmission](raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidArtifactType, t)
	}
}

func unmarshal[T Submission](raw json.RawMessage) (Submission, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, &ValidationError{Field: "artifact", Message: fmt.Sprintf("提出内容の形式が正しくありません: %v", err)}
	}
	return v, nil
}
