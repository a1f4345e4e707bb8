package service

import (
	"sync"

	"go.uber.org/zap"

	"life-auth/internal/repository"
	"life-auth/internal/sms"
	"life-auth/internal/token"
)

// ServiceFactory creates and manages service instances
type ServiceFactory struct {
	codes       repository.CodeStore
	users       repository.UserDirectory
	tokens      token.Issuer
	sender      sms.Sender
	exposeCodes bool
	logger      *zap.Logger

	once         sync.Once
	verification *VerificationService
}

func NewServiceFactory(
	codes repository.CodeStore,
	users repository.UserDirectory,
	tokens token.Issuer,
	sender sms.Sender,
	exposeCodes bool,
	logger *zap.Logger,
) *ServiceFactory {
	return &ServiceFactory{
		codes:       codes,
		users:       users,
		tokens:      tokens,
		sender:      sender,
		exposeCodes: exposeCodes,
		logger:      logger,
	}
}

// VerificationService returns the verification service instance (singleton)
func (f *ServiceFactory) VerificationService() *VerificationService {
	f.once.Do(func() {
		if f.exposeCodes {
			f.logger.Warn("Verification codes are echoed in send-code responses; never enable outside development")
		}
		f.verification = NewVerificationService(f.codes, f.users, f.tokens, f.sender,
			WithExposedCodes(f.exposeCodes),
			WithLogger(f.logger.Named("verification")),
		)
	})
	return f.verification
}
