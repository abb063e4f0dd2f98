package cnst

// Platform identifies a supported social network.
type Platform string

const (
	PlatformX         Platform = "x"
	PlatformInstagram Platform = "instagram"
)

func (p Platform) String() string {
	return string(p)
}

// OrDefault resolves an absent platform selector to X, which is what
// requests written before the Instagram integration expect.
func (p Platform) OrDefault() Platform {
	if p == "" {
		return PlatformX
	}
	return p
}

// Bus topics. All traffic shares one broadcast bus; subscribers filter by
// topic and correlation token and must leave foreign messages untouched.
const (
	TopicLocatorReport = "locator.report"
	TopicIconsResult   = "icons.result"
	TopicIconsProgress = "icons.progress"
)

// Progress marker events relayed to the requesting page.
const (
	ProgressStartGetIcons = "startGetIcons"
	ProgressEndGetIcons   = "endGetIcons"
)

// BlankHandle is the sentinel for an intentionally empty label slot. It
// survives normalization so the result list keeps positional correspondence
// with the user's input.
const BlankHandle = "@"
