// internal/collector/rules.go
package collector

import (
	"github.com/valpere/FeedScrapexter/internal/selector"
	"github.com/valpere/FeedScrapexter/pkg/types"
)

// RuleKind selects how a rule turns matched nodes into records.
type RuleKind int

const (
	// RuleBatch extracts one record per node matched by the target query.
	RuleBatch RuleKind = iota
	// RuleCurrent extracts the single video the page is playing.
	RuleCurrent
	// RuleChannels extracts channel records from the subscription list.
	RuleChannels
)

// List names the batch list a rule appends to.
type List int

const (
	ListVideos List = iota
	ListShorts
	ListRecommended
	ListSubscriptions
)

// Rule is one (target, handling) pair run for a page type.
type Rule struct {
	Kind   RuleKind
	Target selector.Target
	Phase  types.SourcePhase
	List   List
	// Split moves records classified as shorts from the videos list to the
	// shorts list, tagged with the shorts phase.
	Split bool
}

var ruleTable = map[selector.PageType][]Rule{
	selector.PageHome: {
		{Kind: RuleBatch, Target: selector.TargetVideoContainer, Phase: types.PhaseHomeFeed, List: ListVideos, Split: true},
		{Kind: RuleBatch, Target: selector.TargetShortsContainer, Phase: types.PhaseShorts, List: ListShorts},
	},
	selector.PageWatch: {
		{Kind: RuleCurrent, Phase: types.PhaseVideo, List: ListVideos},
		{Kind: RuleBatch, Target: selector.TargetSidebarRecommendations, Phase: types.PhaseRecommended, List: ListRecommended},
	},
	selector.PagePlaylist: {
		{Kind: RuleBatch, Target: selector.TargetVideoContainer, Phase: types.PhasePlaylist, List: ListVideos, Split: true},
	},
	selector.PageShorts: {
		{Kind: RuleCurrent, Phase: types.PhaseShorts, List: ListShorts},
		{Kind: RuleBatch, Target: selector.TargetShortsContainer, Phase: types.PhaseShorts, List: ListShorts},
	},
	selector.PageSubscriptions: {
		{Kind: RuleBatch, Target: selector.TargetVideoContainer, Phase: types.PhaseSubscriptions, List: ListVideos, Split: true},
		{Kind: RuleChannels, Target: selector.TargetSubscriptionChannels, Phase: types.PhaseSubscriptions, List: ListSubscriptions},
	},
	selector.PageHistory: {
		{Kind: RuleBatch, Target: selector.TargetVideoContainer, Phase: types.PhaseWatchHistory, List: ListVideos, Split: true},
	},
	selector.PageSearch: {
		{Kind: RuleBatch, Target: selector.TargetVideoContainer, Phase: types.PhaseSearch, List: ListVideos, Split: true},
	},
	selector.PageChannel: {
		{Kind: RuleBatch, Target: selector.TargetVideoContainer, Phase: types.PhaseVideo, List: ListVideos, Split: true},
	},
}

// RulesFor returns the rules run on a page type. Unknown pages have none.
func RulesFor(pageType selector.PageType) []Rule {
	return ruleTable[pageType]
}
