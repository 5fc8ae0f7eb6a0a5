// Package services holds the authorization, hierarchy and cascade-consistency
// core. Every exported operation takes the acting identity as an explicit
// models.Actor and returns either a payload or an apperr error.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/models"
	"taskboard-backend/pkg/utils"
)

// TokenIssuer signs session tokens for authenticated users.
type TokenIssuer interface {
	IssueToken(user *models.User) (string, time.Time, error)
}

// Service is the entry point used by the request-handling layer.
type Service struct {
	db     database.Store
	log    logrus.FieldLogger
	hasher utils.PasswordHasher
	tokens TokenIssuer
}

// New wires the core to its collaborators.
func New(db database.Store, log logrus.FieldLogger, hasher utils.PasswordHasher, tokens TokenIssuer) *Service {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	return &Service{db: db, log: log, hasher: hasher, tokens: tokens}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// populate resolves user ids into references, skipping ids that no longer resolve.
func populate(ctx context.Context, db database.Store, ids ...string) (map[string]*models.UserRef, error) {
	refs := make(map[string]*models.UserRef, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, seen := refs[id]; seen {
			continue
		}
		u, err := db.GetUserByID(ctx, id)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		refs[id] = u.Ref()
	}
	return refs, nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
