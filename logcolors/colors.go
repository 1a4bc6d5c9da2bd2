package logcolors

// ANSI color codes for log prefixes
const (
	Reset  = "\033[0m"
	Green  = "\033[32m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"

	// Bright variants for more color variety
	BrightGreen   = "\033[92m"
	BrightBlue    = "\033[94m"
	BrightMagenta = "\033[95m"
	BrightCyan    = "\033[96m"

	Red       = "\033[31m"
	BrightRed = "\033[91m"
)

// Response cache log prefixes
const (
	LogCache           = Blue + "[Cache]" + Reset
	LogCacheHit        = Green + "[Cache:Hit]" + Reset
	LogCacheMiss       = Cyan + "[Cache:Miss]" + Reset
	LogCacheExpired    = Cyan + "[Cache:Expired]" + Reset
	LogCacheInvalidate = Blue + "[Cache:Invalidate]" + Reset
	LogSingleFlight    = Blue + "[Cache:SingleFlight]" + Reset
)

// Rate limiting log prefixes
const (
	LogRateLimit = Purple + "[RateLimit]" + Reset
	LogAPIKey    = Purple + "[APIKey]" + Reset
)

// CircuitBreakerPrefix returns a colored circuit breaker prefix with the given name
func CircuitBreakerPrefix(name string) string {
	return Purple + "[CircuitBreaker:" + name + "]" + Reset
}

// sessionColors rotate per session so interleaved logs stay readable
var sessionColors = []string{
	Green, Blue, Purple, Cyan, Red,
	BrightGreen, BrightBlue, BrightMagenta, BrightCyan, BrightRed,
}

// Session returns a colored session ID for log messages.
// Same session ID always gets the same color.
func Session(id string) string {
	hash := 0
	for _, c := range id {
		hash += int(c)
	}
	color := sessionColors[hash%len(sessionColors)]
	return color + id + Reset
}

// Server/Init log prefixes
const (
	LogServer = Green + "[Server]" + Reset
	LogConfig = Cyan + "[Config]" + Reset
	LogStats  = Blue + "[Stats]" + Reset
	LogEvents = Cyan + "[Events]" + Reset
)

// Metadata provider log prefixes
const (
	LogRequest  = Purple + "[Request]" + Reset
	LogSearch   = Blue + "[Search]" + Reset
	LogHTTP     = Cyan + "[HTTP]" + Reset
	LogUpstream = Red + "[Upstream]" + Reset
)

// Lyrics log prefixes
const (
	LogLyrics      = Blue + "[Lyrics]" + Reset
	LogLyricsParse = Cyan + "[Lyrics:Parse]" + Reset
	LogLyricsSync  = Green + "[Lyrics:Sync]" + Reset
	LogSession     = Purple + "[Session]" + Reset
)

// Likes store log prefixes
const (
	LogLikesInit   = Blue + "[Likes:Init]" + Reset
	LogLikes       = Blue + "[Likes]" + Reset
	LogLikesBackup = Blue + "[Likes:Backup]" + Reset
)
