// SPDX-License-Identifier: EPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ContainerNotFoundId Id = iota + 1
	NotAContainerId
	LayoutInvalidId
	IndexCorruptId
	UnitMissingId
	UnknownModeId
	EntryPointNotFoundId
	IntegrityTamperedId
	KeyInvalidId
	ConfigLoadFailedId
	DescriptorInvalidId
	ExtractFailedId
	ScriptExecutionFailedId
	PermissionDeniedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n"
		extraMd += "## See also:\n"
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "](" + string(link) + ")\n"
		}
		for _, link := range i.extLinks {
			extraMd += "- [" + string(link) + "](" + string(link) + ")\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	containerNotFoundIssue = &Issue{
		id: ContainerNotFoundId,
		mdMsg: `
# Container not found!

The path given to bootpack does not exist.

## Things you can try:
- Check the path for typos
- Build the container first:
~~~
$ bootpack pack --descriptor bootpack.cue --output app.jar
~~~`,
	}

	notAContainerIssue = &Issue{
		id: NotAContainerId,
		mdMsg: `
# Not a bootpack container!

The path is neither a zip archive (optionally behind a launch script) nor an
exploded directory with a ` + "`META-INF/MANIFEST.MF`" + `.

## Things you can try:
- Make sure the file was not truncated during download
- Inspect it with:
~~~
$ bootpack inspect app.jar
~~~`,
	}

	layoutInvalidIssue = &Issue{
		id: LayoutInvalidId,
		mdMsg: `
# Invalid container layout!

The container does not follow the executable archive layout.

## Required entries:
- ` + "`META-INF/MANIFEST.MF`" + ` with a ` + "`Start-Class`" + ` attribute
- ` + "`BOOT-INF/classes/`" + ` for application content
- ` + "`BOOT-INF/lib/`" + ` for nested libraries, stored uncompressed

## Things you can try:
- Rebuild the container with ` + "`bootpack pack`",
	}

	indexCorruptIssue = &Issue{
		id: IndexCorruptId,
		mdMsg: `
# Corrupt index!

` + "`BOOT-INF/classpath.idx`" + ` or ` + "`BOOT-INF/layers.idx`" + ` could not be parsed.
The error names the offending line.

## Expected formats:
~~~
- "BOOT-INF/lib/alpha-1.0.jar"
- "BOOT-INF/lib/bravo-1.0.jar"
~~~

~~~yaml
- "dependencies":
  - "BOOT-INF/lib/"
- "application":
  - "BOOT-INF/classes/"
~~~`,
	}

	unitMissingIssue = &Issue{
		id: UnitMissingId,
		mdMsg: `
# Classpath unit missing!

The classpath index lists a library that is not present in the container.
The launch was aborted before the application started.

## Things you can try:
- List what the index expects:
~~~
$ BOOTPACK_MODE=classpath bootpack launch app.jar
~~~
- Rebuild the container so the index and the libraries agree`,
	}

	unknownModeIssue = &Issue{
		id: UnknownModeId,
		mdMsg: `
# Unknown tool mode!

` + "`BOOTPACK_MODE`" + ` names a tool this container does not provide.

## Known tools:
- ` + "`classpath`" + ` prints the effective classpath
- ` + "`layertools`" + ` lists and extracts layers
- ` + "`verify`" + ` checks the integrity record

## Things you can try:
- Unset the variable to launch the application:
~~~
$ unset BOOTPACK_MODE
~~~`,
	}

	entryPointNotFoundIssue = &Issue{
		id: EntryPointNotFoundId,
		mdMsg: `
# Entry point not found!

The manifest ` + "`Start-Class`" + ` does not name a registered entry point, and no
script resource with that name exists in the classpath.

## Things you can try:
- Check the ` + "`start_class`" + ` field of your descriptor
- Ship the script under ` + "`BOOT-INF/classes/`",
	}

	integrityTamperedIssue = &Issue{
		id: IntegrityTamperedId,
		mdMsg: `
# Integrity check failed!

The container content no longer matches its signed integrity record.
Do not run it.

## Things you can try:
- Download the container again from a trusted source
- Re-sign it if you changed it on purpose:
~~~
$ bootpack sign --key signing.key app.jar
~~~`,
	}

	keyInvalidIssue = &Issue{
		id: KeyInvalidId,
		mdMsg: `
# Invalid key file!

The key file could not be parsed as a bootpack ed25519 key.

## Things you can try:
- Generate a fresh pair:
~~~
$ bootpack keygen --output signing.key
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Your configuration file contains errors, or a BOOTPACK_* environment
variable holds an invalid value.

## Things you can try:
- Print the effective configuration:
~~~
$ bootpack config show
~~~
- Print the file location:
~~~
$ bootpack config path
~~~`,
	}

	descriptorInvalidIssue = &Issue{
		id: DescriptorInvalidId,
		mdMsg: `
# Invalid package descriptor!

The descriptor given to ` + "`bootpack pack`" + ` does not match its schema.

## Example descriptor:
~~~cue
start_class: "demo.Main"
classes:     "build/classes"
libraries: [
  {path: "libs/alpha-1.0.jar"},
]
~~~`,
	}

	extractFailedIssue = &Issue{
		id: ExtractFailedId,
		mdMsg: `
# Layer extraction failed!

One or more layers could not be written to the destination.

## Things you can try:
- Check that the destination is writable
- Make sure two layers are not mapped to nested directories`,
	}

	scriptExecutionFailedIssue = &Issue{
		id: ScriptExecutionFailedId,
		mdMsg: `
# Entry point script failed!

The script entry point exited with an error. Its own output appears above.`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

bootpack could not read or write a file it needed.

## Things you can try:
- Check file ownership and mode
- Choose another destination with ` + "`--destination`",
	}

	issues = map[Id]*Issue{
		containerNotFoundIssue.Id():     containerNotFoundIssue,
		notAContainerIssue.Id():         notAContainerIssue,
		layoutInvalidIssue.Id():         layoutInvalidIssue,
		indexCorruptIssue.Id():          indexCorruptIssue,
		unitMissingIssue.Id():           unitMissingIssue,
		unknownModeIssue.Id():           unknownModeIssue,
		entryPointNotFoundIssue.Id():    entryPointNotFoundIssue,
		integrityTamperedIssue.Id():     integrityTamperedIssue,
		keyInvalidIssue.Id():            keyInvalidIssue,
		configLoadFailedIssue.Id():      configLoadFailedIssue,
		descriptorInvalidIssue.Id():     descriptorInvalidIssue,
		extractFailedIssue.Id():         extractFailedIssue,
		scriptExecutionFailedIssue.Id(): scriptExecutionFailedIssue,
		permissionDeniedIssue.Id():      permissionDeniedIssue,
	}
)

// Values returns every catalog entry ordered by Id.
func Values() []*Issue {
	values := maps.Values(issues)
	slices.SortFunc(values, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return values
}

func Get(id Id) *Issue {
	return issues[id]
}
