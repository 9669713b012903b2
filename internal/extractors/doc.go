// Package extractors provides implementations of the Extractor interface
// for the closed set of document formats. Each extractor knows how to turn
// the bytes of one or more formats into text parts with structural metadata.
//
// Extractors are registered with the ExtractorRegistry at startup.
package extractors
