// Package domain models US State Department travel advisory data.
//
// # Data Source
//
// Advisories come from the State Department RSS feed at
// https://travel.state.gov/_res/rss/TAsTWs.xml. Each item carries a title, a
// publish timestamp, and two category tags. The feed is republished whenever
// any country's advisory changes, so one fetch is a full snapshot.
//
// # Feed Conventions
//
// Title format:
//
//	"<name> - <level label>"  →  e.g. "Germany - Level 2: Exercise Increased Caution"
//	The name portion drives the name-based overrides (Macau, Hong Kong).
//
// Tags:
//
//	tag[0]: threat level label, e.g. "Level 3: Reconsider Travel".
//	        Casing varies between entries ("level 1: exercise normal precautions").
//	tag[1]: jurisdiction code in the State Department's two-letter scheme, which
//	        overlaps with but differs from ISO 3166-1 alpha-2 ("GM" is Germany,
//	        "GB" is Gabon). Codes that already agree with ISO are not listed in
//	        the conversion table and pass through unchanged.
//
// Known quirks:
//
//	"BL" (Bolivia) collides with the ISO code for Saint Barthélemy, which the
//	French territory expansion emits. It is redirected to the lookup key
//	"BOLIV" before the table lookup.
//
//	"A3" stands for the French overseas territories as one advisory. It is
//	expanded into GP, MQ, MF, and BL before anything is persisted.
//
//	Macau and Hong Kong arrive without a usable jurisdiction code and are
//	assigned MO and HK by title.
//
//	Publish timestamps are occasionally in the future. Dates are clamped to
//	the processing day.
//
// # Threat Levels
//
//	1  Exercise Normal Precautions
//	2  Exercise Increased Caution
//	3  Reconsider Travel
//	4  Do Not Travel
//
// The West Bank and Gaza are rated inside the Israel advisory page rather than
// the feed. The composite Palestinian territories rating is the more severe of
// the two sub-region levels. See [EnrichDependentTerritory].
//
// # History
//
// Reconciliation is append-only: every run's batch is added to history and
// records are never mutated. The latest state per country is a projection
// over history. See [Reconcile].
package domain
