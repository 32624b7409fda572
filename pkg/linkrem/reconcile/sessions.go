package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/Uzaifm127/linkrem/pkg/linkrem/models"
	"gorm.io/gorm"
)

// SessionLink is one tab submitted as part of a session
type SessionLink struct {
	Name string
	URL  string
}

// CreateSession stores a named session referencing the given links.
// A link the owner already saved under the same URL is connected rather than
// duplicated; new links are created and tagged with the locked session tag.
func (e *Engine) CreateSession(ctx context.Context, ownerID uint, name string, links []SessionLink) (*models.Session, error) {
	ctx, span := e.start(ctx, "create_session")
	defer span.End()

	name, err := normalizeName(name)
	if err != nil {
		return nil, e.finish(span, "create_session", false, &ValidationError{"Invalid session name"})
	}

	type entry struct{ name, url string }
	entries := make([]entry, 0, len(links))
	seen := make(map[string]bool, len(links))
	for _, l := range links {
		u, err := normalizeURL(l.URL)
		if err != nil {
			return nil, e.finish(span, "create_session", false, err)
		}
		if seen[u] {
			continue
		}
		seen[u] = true
		entries = append(entries, entry{name: l.Name, url: u})
	}

	session := models.Session{OwnerID: ownerID, Name: name}
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Session{}).Where("owner_id = ? AND name = ?", ownerID, name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrConflict
		}
		if err := tx.Create(&session).Error; err != nil {
			return err
		}

		members := make([]models.Link, 0, len(entries))
		for _, en := range entries {
			link, err := connectOrCreateLink(tx, ownerID, en.name, en.url)
			if err != nil {
				return err
			}
			member := *link
			member.Tags = nil
			members = append(members, member)
		}
		if len(members) > 0 {
			if err := tx.Model(&session).Association("Links").Append(members); err != nil {
				return err
			}
		}
		return tx.Preload("Links.Tags").First(&session, session.ID).Error
	})
	if err = e.finish(span, "create_session", err == nil, err); err != nil {
		return nil, err
	}

	e.invalidate(ctx, ownerID)
	return &session, nil
}

// DeleteSession removes a session. Its links are kept.
func (e *Engine) DeleteSession(ctx context.Context, ownerID, sessionID uint) error {
	ctx, span := e.start(ctx, "delete_session")
	defer span.End()

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.Session
		if err := tx.Where("owner_id = ? AND id = ?", ownerID, sessionID).First(&session).Error; err != nil {
			return err
		}
		if err := tx.Model(&session).Association("Links").Clear(); err != nil {
			return err
		}
		return tx.Delete(&session).Error
	})
	return e.finish(span, "delete_session", err == nil, err)
}

// connectOrCreateLink returns the owner's link for url, creating it when
// missing. A new link whose name is taken gets a numeric suffix.
func connectOrCreateLink(tx *gorm.DB, ownerID uint, name, url string) (*models.Link, error) {
	var link models.Link
	err := tx.Where("owner_id = ? AND url = ?", ownerID, url).Order("id").First(&link).Error
	if err == nil {
		return &link, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	base, err := normalizeName(name)
	if err != nil {
		base = url
		if len(base) > 180 {
			base = base[:180]
		}
	}

	candidate := base
	for i := 2; ; i++ {
		err := checkNameFree(tx, ownerID, candidate, 0)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		candidate = fmt.Sprintf("%s (%d)", base, i)
	}

	link = models.Link{OwnerID: ownerID, Name: candidate, URL: url}
	if err := tx.Create(&link).Error; err != nil {
		return nil, err
	}
	if err := attachTags(tx, &link, []string{models.SessionTagName}, true); err != nil {
		return nil, err
	}
	return &link, nil
}
