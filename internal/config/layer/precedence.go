package layer

// Standard priority levels for configuration layers.
// Higher values override lower values during merging.
const (
	PriorityBuiltin = 0
	PriorityUser    = 100
	PriorityProject = 200
	PriorityHost    = 300
	PriorityEnv     = 500
	PrioritySession = 1000
)

// DefaultPriority returns the default priority for a given source.
func DefaultPriority(source Source) int {
	switch source {
	case SourceUser:
		return PriorityUser
	case SourceProject:
		return PriorityProject
	case SourceHost:
		return PriorityHost
	case SourceEnv:
		return PriorityEnv
	case SourceSession:
		return PrioritySession
	default:
		return PriorityBuiltin
	}
}

// Standard layer names for the single-instance sources.
const (
	NameDefaults    = "defaults"
	NameHost        = "host"
	NameEnvironment = "environment"
	NameSession     = "session"
)
