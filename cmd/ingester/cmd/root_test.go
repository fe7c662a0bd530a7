package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCmd(t *testing.T) {
	root := RootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"run", "migrate", "index", "links"}, names)
	assert.NotNil(t, root.PersistentFlags().Lookup(CustomConfigLocation))
}

func TestRunCmdFlags(t *testing.T) {
	cmd := runCmd()
	assert.NotNil(t, cmd.Flags().Lookup(userStartFlag))
	assert.NotNil(t, cmd.Flags().Lookup(userEndFlag))
}
