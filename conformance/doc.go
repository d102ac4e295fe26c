// Package conformance validates resource instances against the reflection
// model.
//
// The walk covers every element of every nested object: cardinality, type
// conformance of each value, unknown elements, and presence of modifier
// elements. It never stops at the first finding; a single pass reports
// everything.
package conformance
