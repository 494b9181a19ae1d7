// Copyright (C) The CellCNV Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package main

import "cellcnv"

func main() {
	cellcnv.Main()
}
