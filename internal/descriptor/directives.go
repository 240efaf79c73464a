package descriptor

import (
	"go/ast"
	"strings"

	ferrors "github.com/funvibe/fatptr/internal/errors"
	"github.com/funvibe/fatptr/pkg/fatptr"
	"go.uber.org/multierr"
)

// DirectivePrefix starts a method qualifier directive.
const DirectivePrefix = "//fatptr:"

// parseDirectives collects the qualifiers declared on an interface method
// field, in its doc comment or trailing line comment. A directive may list
// several qualifiers separated by commas: //fatptr:const,noalloc.
func parseDirectives(src *Source, field *ast.Field) (fatptr.Qualifier, error) {
	var (
		q    fatptr.Qualifier
		errs error
	)
	for _, group := range []*ast.CommentGroup{field.Doc, field.Comment} {
		if group == nil {
			continue
		}
		for _, c := range group.List {
			rest, ok := strings.CutPrefix(c.Text, DirectivePrefix)
			if !ok {
				continue
			}
			if i := strings.IndexAny(rest, " \t"); i >= 0 {
				rest = rest[:i]
			}
			for _, name := range strings.Split(rest, ",") {
				qual, ok := fatptr.ParseQualifier(name)
				if !ok {
					method := ""
					if len(field.Names) > 0 {
						method = field.Names[0].Name
					}
					errs = multierr.Append(errs, ferrors.New(ferrors.PhaseDescribe, ferrors.KindInvalidDirective).
						Method(method).Pos(src.position(c.Pos())).
						Detail("unknown qualifier %q (valid: const, pure, noalloc)", name).Build())
					continue
				}
				q |= qual
			}
		}
	}
	return q, errs
}
