// Copyright (C) 2023 Carlo Verona
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


package cube

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Reads a cube from the given JSON file
func NewCubeFromFile(fileName string, id int) (*Cube, error) {
	file, err:=os.Open(fileName)
	if err!=nil { return nil, err }
	defer file.Close()

	c, err:=ReadCube(bufio.NewReader(file))
	if err!=nil { return nil, fmt.Errorf("%s: %s", fileName, err.Error()) }
	c.ID, c.FileName = id, fileName
	return c, nil
}

// Reads a cube from JSON
func ReadCube(reader io.Reader) (*Cube, error) {
	c:=&Cube{}
	if err:=json.NewDecoder(reader).Decode(c); err!=nil { return nil, err }
	if err:=c.Validate(); err!=nil { return nil, err }
	return c, nil
}

// Checks dimensions and data length for consistency
func (c *Cube) Validate() error {
	if c.Width<=0 || c.Height<=0 || c.Channels<=0 {
		return fmt.Errorf("invalid cube dimensions %dx%dx%d", c.Width, c.Height, c.Channels)
	}
	if int32(len(c.Data))!=c.Width*c.Height*c.Channels {
		return fmt.Errorf("cube data has %d values, expected %d", len(c.Data), c.Width*c.Height*c.Channels)
	}
	return nil
}

// Writes the cube to the given file as JSON
func (c *Cube) WriteFile(fileName string) error {
	file, err:=os.Create(fileName)
	if err!=nil { return err }
	defer file.Close()

	writer:=bufio.NewWriter(file)
	defer writer.Flush()

	return c.Write(writer)
}

// Writes the cube as JSON. JSON cannot carry NaN or Inf, so non-finite
// pixels are stored as 0, which the validity convention treats the same
func (c *Cube) Write(writer io.Writer) error {
	return json.NewEncoder(writer).Encode(c.Sanitized())
}

// Returns the cube itself when all pixels are finite, otherwise a copy
// with non-finite pixels zeroed
func (c *Cube) Sanitized() *Cube {
	for _,v:=range c.Data {
		if !Valid(v) && v!=0 {
			out:=c.Clone()
			for i,w:=range out.Data {
				if !Valid(w) { out.Data[i]=0 }
			}
			return out
		}
	}
	return c
}
