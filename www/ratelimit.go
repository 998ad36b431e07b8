package www

import (
	"log"
	"net/http"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

const defaultRate = "120-M"

// newRateLimit builds a per-client limiter from a formatted rate such as
// "60-M". An invalid rate falls back to the default.
func newRateLimit(formatted string) func(http.Handler) http.Handler {
	if formatted == "" {
		formatted = defaultRate
	}
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		log.Printf("ratelimit: invalid rate %q, using %s: %v", formatted, defaultRate, err)
		rate, _ = limiter.NewRateFromFormatted(defaultRate)
	}
	instance := limiter.New(memory.NewStore(), rate)
	mw := stdlib.NewMiddleware(instance)
	return mw.Handler
}
