// Package textutil provides text processing utilities for matching movie
// titles and song names across providers.
//
// The primary use cases are:
//   - Normalizing free text into a lowercase ASCII token stream
//   - Encoding titles into a 4-character phonetic code for sounds-like lookup
//   - Computing bigram (Dice) similarity between two strings
//
// Normalization lowercases text, strips diacritics, and folds every
// non-alphanumeric run into a single space. All matching elsewhere in the
// engine operates on normalized text so providers that disagree on
// punctuation or accents still reconcile.
package textutil
