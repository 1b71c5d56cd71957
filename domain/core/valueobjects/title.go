package valueobjects

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"calctree/domain/config"
	pkgerrors "calctree/pkg/errors"
)

// NewDiscussionTitle trims and length-checks a discussion title.
func NewDiscussionTitle(title string, cfg *config.DomainConfig) (string, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return checkTitle("discussion", title, cfg.MinDiscussionTitleLength, cfg.MaxDiscussionTitleLength)
}

// NewOperationTitle trims and length-checks an optional operation title.
// An empty title is allowed and means "untitled".
func NewOperationTitle(title string, cfg *config.DomainConfig) (string, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return "", nil
	}
	return checkTitle("operation", title, cfg.MinOperationTitleLength, cfg.MaxOperationTitleLength)
}

func checkTitle(owner, title string, minLen, maxLen int) (string, error) {
	title = strings.TrimSpace(title)
	n := utf8.RuneCountInString(title)
	if n < minLen {
		return "", pkgerrors.Validation(fmt.Sprintf("%s title too short: minimum %d characters required", owner, minLen)).
			WithDetail("field", "title")
	}
	if n > maxLen {
		return "", pkgerrors.Validation(fmt.Sprintf("%s title exceeds maximum length of %d characters", owner, maxLen)).
			WithDetail("field", "title")
	}
	return title, nil
}
