// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package timeout provides pluggable policies for setting attempt
// timeouts across the retries of a transfer.
package timeout
