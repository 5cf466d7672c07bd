// Copyright (c) 2024 fencehub contributors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package params

// metadataXML is the static resource-agent descriptor the agent prints
// for action=metadata, rewritten from original_source's
// ClientMetaData.cpp rather than transliterated from it.
const metadataXML = `<?xml version="1.0"?>
<resource-agent name="fencehub" shortdesc="Fencing agent for the fencehub cluster node-fencing service">
  <longdesc>
    Connects to a fencehub server over TCP and requests a power-control
    action (off, on, reboot) against a named cluster node, or probes the
    server for reachability.
  </longdesc>
  <parameters>
    <parameter name="ip_address" required="1">
      <getopt mixed="--ip_address=[ip]" />
      <content type="string" />
      <shortdesc>Address of the fencehub server</shortdesc>
    </parameter>
    <parameter name="tcp_port" required="0">
      <getopt mixed="--tcp_port=[port]" />
      <content type="integer" default="7090" />
      <shortdesc>TCP port of the fencehub server</shortdesc>
    </parameter>
    <parameter name="secret" required="1">
      <getopt mixed="--secret=[secret]" />
      <content type="string" />
      <shortdesc>Shared secret authorizing the fencing action</shortdesc>
    </parameter>
    <parameter name="nodename" required="1">
      <getopt mixed="--nodename=[name]" />
      <content type="string" />
      <shortdesc>Name of the node to fence</shortdesc>
    </parameter>
  </parameters>
  <actions>
    <action name="on" />
    <action name="off" />
    <action name="reboot" />
    <action name="status" />
    <action name="monitor" />
    <action name="metadata" />
  </actions>
</resource-agent>
`

// MetadataXML returns the static resource-agent metadata document
// printed for action=metadata.
func MetadataXML() string {
	return metadataXML
}
