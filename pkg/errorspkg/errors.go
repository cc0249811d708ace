// Package errorspkg provides errors shared across walletpay layers.
package errorspkg

import "errors"

// ErrInternal hides storage and infrastructure failures from API clients.
// Repositories return it in place of any error that carries no domain meaning.
var ErrInternal = errors.New("internal")
