/*
Replacing a file on disk in a robust way requires:

- handling the error returned by Write()

- handling the error returned by Close()

- removing the partially written file when either failed

- not exposing a half-written file at the destination path, ever

Package atomicfile gets this logic right by writing to a temporary
file and renaming it over the destination on a successful Close:

	func replaceFileAtomically(filePath string, data []byte) error {
		w, err := atomicfile.New(filePath)
		if err != nil {
			return err
		}
		// calling Close() twice is a no-op
		defer w.Close()

		_, err = w.Write(data)
		if err != nil {
			return err
		}
		return w.Close()
	}
*/
package atomicfile
