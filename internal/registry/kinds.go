package registry

// Kind prefixes used to build resource keys, and the fixed table the raw
// watcher uses to resolve a key's kind-prefix segment back to a
// ResourceType (component D).
const (
	KindPrefixAgent    = "agents"
	KindPrefixIdentity = "identities"
	KindPrefixTeam     = "teams"
	KindPrefixWorkflow = "workflows"
)

// ResourceType identifies a kind independent of its storage prefix.
type ResourceType string

const (
	ResourceTypeAgent    ResourceType = "Agent"
	ResourceTypeIdentity ResourceType = "Identity"
	ResourceTypeTeam     ResourceType = "Team"
	ResourceTypeWorkflow ResourceType = "Workflow"
)

// ResourceTypeForPrefix resolves a key's kind-prefix segment to its
// ResourceType. Unknown prefixes return ("", false).
func ResourceTypeForPrefix(prefix string) (ResourceType, bool) {
	switch prefix {
	case KindPrefixAgent:
		return ResourceTypeAgent, true
	case KindPrefixIdentity:
		return ResourceTypeIdentity, true
	case KindPrefixTeam:
		return ResourceTypeTeam, true
	case KindPrefixWorkflow:
		return ResourceTypeWorkflow, true
	default:
		return "", false
	}
}
