// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package transient categorizes errors by their transience, i.e. the
likelihood that the error will go away on its own if a request attempt
is retried. The transport driver uses the category to derive the
terminal code it reports for a failed attempt, and the retry package
uses those codes in its default retry condition.
*/
package transient
