/*
Copyright © 2019 the overlay authors.
This file is part of overlay.

overlay is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

overlay is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with overlay.  If not, see <http://www.gnu.org/licenses/>.
*/

// Command overlay is a command-line interface for the polygon overlay engine.
package main

import (
	"fmt"
	"os"

	"github.com/spatialmodel/overlay/overlayutil"
)

func main() {
	if len(os.Args) == 1 { // If no command was supplied, start the GUI server.
		overlayutil.StartWebServer()
		return
	}

	if err := overlayutil.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
