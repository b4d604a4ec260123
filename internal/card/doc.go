// Package card defines the automation card model shared by every part of the
// controller.
//
// A card is one automation unit: a digital input (DI), digital output (DO),
// analog input (AI), soft output (SIO), math block (MATH) or real-time-clock
// schedule target (RTC). Cards are addressed by a dense id whose ranges are
// family-ordered and fixed for the controller's lifetime:
//
//	[0, DOStart)          DI
//	[DOStart, AIStart)    DO
//	[AIStart, SIOStart)   AI
//	[SIOStart, MathStart) SIO
//	[MathStart, RTCStart) MATH
//	[RTCStart, Total)     RTC
//
// # Key Types
//
//   - Card: configuration (family settings, Set/Reset condition blocks) plus
//     the runtime Signals mirror used for reporting
//   - Layout: per-family counts and the derived id boundaries
//   - ConditionBlock: one- or two-clause Set/Reset gate
//   - Operator, Combiner: the closed condition vocabulary
//
// # Validation
//
// Validate is the configuration-time defence: it checks identity, family
// ranges, settings and operator legality against the source card's family.
// The runtime never receives a card array that has not passed Validate.
//
// # Tokens
//
// Every enum marshals to a stable upper-case token (e.g. "DO", "ON_DELAY",
// "LOGICAL_TRUE") via encoding.TextMarshaler, so JSON and YAML
// representations round-trip by name.
package card
