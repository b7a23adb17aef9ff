// Command corpusctl maintains the remote assistant and vector store used by
// the document assistant, and reads mirrored transcripts.
package main

import "github.com/FabioProni/mida-chatbot-mvp-custom/cmd/corpusctl/cli"

func main() {
	cli.Execute()
}
