package port

import "context"

// Mailer delivers recovery credentials to an account's email address.
// Delivery is fire-and-forget from the core's perspective: a failed send is
// logged by the caller and never fails the originating operation.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
	SendEmailVerification(ctx context.Context, email, token string) error
}
